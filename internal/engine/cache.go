package engine

import (
	"container/list"
	"encoding/binary"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/sawkit/panelcut/internal/model"
	"github.com/sawkit/panelcut/internal/solver"
)

// itemKey identifies an instance kind for caching. Two instances with
// the same dimensions and rotation permission are interchangeable, so
// labels and UIDs stay out of the key.
type itemKey struct {
	w, h      int64
	canRotate bool
}

// layoutKey identifies one per-sheet solve: the board, the settings
// that shape the model, and the outstanding items in canonical order.
type layoutKey struct {
	usableW     int64
	usableH     int64
	kerf        int64
	maxShelves  int
	cutWeight   int64
	shelfWeight int64
	maxNodes    int64
	timeLimit   int64
	items       []itemKey
}

func (k layoutKey) hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	put(k.usableW)
	put(k.usableH)
	put(k.kerf)
	put(int64(k.maxShelves))
	put(k.cutWeight)
	put(k.shelfWeight)
	put(k.maxNodes)
	put(k.timeLimit)
	for _, it := range k.items {
		put(it.w)
		put(it.h)
		if it.canRotate {
			put(1)
		} else {
			put(0)
		}
	}
	return h.Sum64()
}

func (k layoutKey) equal(o layoutKey) bool {
	if k.usableW != o.usableW || k.usableH != o.usableH || k.kerf != o.kerf ||
		k.maxShelves != o.maxShelves || k.cutWeight != o.cutWeight ||
		k.shelfWeight != o.shelfWeight || k.maxNodes != o.maxNodes ||
		k.timeLimit != o.timeLimit || len(k.items) != len(o.items) {
		return false
	}
	for i := range k.items {
		if k.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

// cachedPlacement stores a placement against the canonical item order
// instead of caller UIDs, so a hit can be relabelled for any request
// with the same item multiset.
type cachedPlacement struct {
	item    int
	shelf   int
	x, y    float64
	w, h    float64
	rotated bool
}

type cachedLayout struct {
	optimal    bool
	placements []cachedPlacement
}

type cacheSlot struct {
	key layoutKey
	val cachedLayout
}

// packCache is a fixed-size LRU over per-sheet layouts. A hash
// collision with a different key counts as a miss.
type packCache struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List
	index map[uint64]*list.Element
}

func newPackCache(capacity int) *packCache {
	return &packCache{
		cap:   capacity,
		ll:    list.New(),
		index: make(map[uint64]*list.Element),
	}
}

func (c *packCache) get(key layoutKey) (cachedLayout, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key.hash()]
	if !ok {
		return cachedLayout{}, false
	}
	slot := el.Value.(cacheSlot)
	if !slot.key.equal(key) {
		return cachedLayout{}, false
	}
	c.ll.MoveToFront(el)
	return slot.val, true
}

func (c *packCache) put(key layoutKey, val cachedLayout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := key.hash()
	if el, ok := c.index[h]; ok {
		el.Value = cacheSlot{key: key, val: val}
		c.ll.MoveToFront(el)
		return
	}
	c.index[h] = c.ll.PushFront(cacheSlot{key: key, val: val})
	for c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.index, oldest.Value.(cacheSlot).key.hash())
	}
}

func (c *packCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// canonicalOrder returns item indices sorted by (w, h, canRotate). The
// sort is stable so equal items keep their request order, which makes
// relabelling deterministic.
func canonicalOrder(items []packItem) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := items[order[a]], items[order[b]]
		if ia.w != ib.w {
			return ia.w < ib.w
		}
		if ia.h != ib.h {
			return ia.h < ib.h
		}
		return !ia.canRotate && ib.canRotate
	})
	return order
}

func buildLayoutKey(usableW, usableH, kerf int64, maxShelves int, cutWeight, shelfWeight int64, params solver.Params, items []packItem, order []int) layoutKey {
	keys := make([]itemKey, len(order))
	for pos, idx := range order {
		it := items[idx]
		keys[pos] = itemKey{w: it.w, h: it.h, canRotate: it.canRotate}
	}
	return layoutKey{
		usableW:     usableW,
		usableH:     usableH,
		kerf:        kerf,
		maxShelves:  maxShelves,
		cutWeight:   cutWeight,
		shelfWeight: shelfWeight,
		maxNodes:    params.MaxNodes,
		timeLimit:   int64(params.TimeLimit),
		items:       keys,
	}
}

// toCached maps solved placements onto the canonical order for storage.
func toCached(placements []model.Placement, items []packItem, order []int, optimal bool) cachedLayout {
	posByUID := make(map[string]int, len(order))
	for pos, idx := range order {
		posByUID[items[idx].uid] = pos
	}
	val := cachedLayout{optimal: optimal}
	for _, pl := range placements {
		val.placements = append(val.placements, cachedPlacement{
			item:    posByUID[pl.UID],
			shelf:   pl.Shelf,
			x:       pl.X,
			y:       pl.Y,
			w:       pl.Width,
			h:       pl.Height,
			rotated: pl.Rotated,
		})
	}
	return val
}

// relabel turns cached placements back into model placements using the
// caller's items in canonical order.
func relabel(val cachedLayout, items []packItem, order []int) []model.Placement {
	placements := make([]model.Placement, 0, len(val.placements))
	for _, cp := range val.placements {
		it := items[order[cp.item]]
		placements = append(placements, model.Placement{
			UID:     it.uid,
			Label:   it.label,
			Shelf:   cp.shelf,
			X:       cp.x,
			Y:       cp.y,
			Width:   cp.w,
			Height:  cp.h,
			Rotated: cp.rotated,
		})
	}
	return placements
}
