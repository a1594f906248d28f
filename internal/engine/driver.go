// Package engine turns part demand into sheet layouts. It drives the
// per-sheet shelf solver across as many sheets as the demand needs and
// assembles the cut plan, the cut-length metrics and the quality
// verdict for the run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sawkit/panelcut/internal/logging"
	"github.com/sawkit/panelcut/internal/model"
	"github.com/sawkit/panelcut/internal/solver"
	"github.com/sawkit/panelcut/internal/telemetry"
)

// Sentinel errors returned by Pack. Details are attached by wrapping,
// so callers match them with errors.Is.
var (
	// ErrRequest flags a request that fails validation before any
	// solving starts.
	ErrRequest = errors.New("invalid pack request")
	// ErrOversize flags part specs that fit the usable sheet area in no
	// permitted orientation.
	ErrOversize = errors.New("part too large for sheet")
	// ErrNoProgress flags a run where the solver could not place a
	// single part on an empty sheet within budget.
	ErrNoProgress = errors.New("solver made no progress")
	// ErrInvariant flags a layout that failed post-solve validation.
	ErrInvariant = errors.New("layout violates packing invariants")
)

// Settings tune the packing run.
type Settings struct {
	Kerf             float64       // blade width in mm, lost between neighbouring parts
	CutWeight        float64       // objective penalty per mm of cut length
	ShelfCountWeight float64       // objective penalty per shelf opened
	MaxShelves       int           // shelf cap per sheet; 0 derives a bound from the part heights
	MaxSheets        int           // hard cap on sheets per run
	MaxNodes         int64         // search node budget per sheet; 0 uses the solver default
	TimeLimit        time.Duration // wall-time budget per sheet; 0 uses the solver default
	CacheSize        int           // layout cache entries; 0 disables the cache
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Kerf:             3.2,
		CutWeight:        1.0,
		ShelfCountWeight: 1.0,
		MaxShelves:       0,
		MaxSheets:        20,
		MaxNodes:         solver.DefaultMaxNodes,
		TimeLimit:        solver.DefaultTimeLimit,
		CacheSize:        128,
	}
}

// Request is one packing job: a board type and the parts to cut from
// it.
type Request struct {
	Board model.BoardSpec  `json:"board"`
	Parts []model.PartSpec `json:"parts"`
}

// Packer runs the shelf solver sheet by sheet until all parts are
// placed or the sheet cap is reached. A Packer is safe for concurrent
// use.
type Packer struct {
	settings Settings
	log      logging.Logger
	sink     telemetry.Sink
	cache    *packCache
}

// New creates a Packer. A nil logger or sink falls back to a no-op
// implementation.
func New(settings Settings, log logging.Logger, sink telemetry.Sink) *Packer {
	if log == nil {
		log = logging.NopLogger{}
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if settings.MaxNodes <= 0 {
		settings.MaxNodes = solver.DefaultMaxNodes
	}
	if settings.TimeLimit <= 0 {
		settings.TimeLimit = solver.DefaultTimeLimit
	}
	var cache *packCache
	if settings.CacheSize > 0 {
		cache = newPackCache(settings.CacheSize)
	}
	return &Packer{settings: settings, log: log, sink: sink, cache: cache}
}

// Pack places the requested parts on as few sheets as the per-sheet
// solver manages, up to the configured sheet cap. When the cap stops
// the run short, the solution is marked capped and the leftover
// instances are listed as unplaced; that is not an error. The returned
// solution is also valid, as far as it goes, alongside any error.
func (p *Packer) Pack(ctx context.Context, req Request) (model.Solution, error) {
	return p.pack(ctx, req, p.settings)
}

func (p *Packer) pack(ctx context.Context, req Request, settings Settings) (model.Solution, error) {
	sol := model.NewSolution()
	if err := validateRequest(req, settings); err != nil {
		sol.Quality = model.QualityBestEffort
		return sol, err
	}

	instances := model.ExpandInstances(req.Parts)
	usableW := req.Board.UsableWidth()
	usableH := req.Board.UsableHeight()

	var oversize []string
	for _, part := range req.Parts {
		if !part.FitsUsable(usableW, usableH) {
			oversize = append(oversize, part.Label)
		}
	}
	if len(oversize) > 0 {
		sol.Quality = model.QualityBestEffort
		sol.Unplaced = instances
		return sol, fmt.Errorf("%w: %s", ErrOversize, strings.Join(oversize, ", "))
	}

	remaining := instances
	params := solveBudget(settings.MaxNodes, settings.TimeLimit)
	for len(remaining) > 0 && len(sol.Sheets) < settings.MaxSheets {
		if err := ctx.Err(); err != nil {
			sol.Quality = model.QualityBestEffort
			sol.Unplaced = remaining
			return sol, fmt.Errorf("packing cancelled: %w", err)
		}

		layout, err := p.solveSheet(ctx, req.Board, remaining, settings, params)
		if err != nil {
			sol.Quality = model.QualityBestEffort
			sol.Unplaced = remaining
			return sol, err
		}
		if len(layout.placements) == 0 {
			sol.Quality = model.QualityBestEffort
			sol.Unplaced = remaining
			if err := ctx.Err(); err != nil {
				return sol, fmt.Errorf("packing cancelled: %w", err)
			}
			return sol, fmt.Errorf("%w: sheet %d ended %s with %d parts outstanding",
				ErrNoProgress, len(sol.Sheets), layout.status, len(remaining))
		}

		sheet := model.Sheet{
			Index:      len(sol.Sheets),
			Board:      req.Board,
			Placements: layout.placements,
			Optimal:    layout.status == solver.Optimal,
		}
		if err := computeSheetMetrics(&sheet); err != nil {
			sol.Sheets = append(sol.Sheets, sheet)
			sol.Quality = model.QualityBestEffort
			sol.Unplaced = remaining
			return sol, fmt.Errorf("%w: %v", ErrInvariant, err)
		}
		if violations := model.ValidateSheet(sheet, req.Parts); len(violations) > 0 {
			sol.Sheets = append(sol.Sheets, sheet)
			sol.Quality = model.QualityBestEffort
			sol.Unplaced = remaining
			return sol, fmt.Errorf("%w: %s", ErrInvariant, strings.Join(violations, "; "))
		}

		sol.Sheets = append(sol.Sheets, sheet)
		remaining = removePlaced(remaining, layout.placements)
		p.log.Infof("sheet %d: placed %d parts, %d remaining (%s, %d nodes)",
			sheet.Index, len(layout.placements), len(remaining), layout.status, layout.nodes)
	}

	if len(remaining) > 0 {
		sol.Capped = true
		sol.Unplaced = remaining
		p.log.Warnf("sheet cap %d reached with %d parts unplaced", settings.MaxSheets, len(remaining))
	}
	sol.Quality = solutionQuality(sol)

	if violations := model.ValidateSolution(sol, req.Parts); len(violations) > 0 {
		sol.Quality = model.QualityBestEffort
		return sol, fmt.Errorf("%w: %s", ErrInvariant, strings.Join(violations, "; "))
	}

	p.sink.PackCompleted(len(sol.Sheets), sol.PlacedCount(), len(sol.Unplaced))
	p.log.Infof("pack complete: %d sheets, %d placed, %d unplaced, efficiency %.1f%%",
		len(sol.Sheets), sol.PlacedCount(), len(sol.Unplaced), sol.TotalEfficiency())
	return sol, nil
}

// solveSheet produces a layout for one sheet, consulting the cache
// first. An Unknown outcome gets one retry before it is reported. The
// returned layout carries zero placements when the solver found
// nothing.
func (p *Packer) solveSheet(ctx context.Context, board model.BoardSpec, remaining []model.Instance, settings Settings, params solver.Params) (shelfLayout, error) {
	items := toPackItems(remaining)
	usableW := toGrid(board.UsableWidth())
	usableH := toGrid(board.UsableHeight())
	kerf := toGrid(settings.Kerf)
	cutWeight := int64(math.Round(settings.CutWeight * 10))
	shelfWeight := int64(math.Round(settings.ShelfCountWeight * 100))

	maxShelves := settings.MaxShelves
	if maxShelves <= 0 {
		maxShelves = defaultShelfBound(usableH, kerf, items)
	}
	if maxShelves > len(items) {
		maxShelves = len(items)
	}
	if maxShelves < 1 {
		maxShelves = 1
	}

	var key layoutKey
	var order []int
	if p.cache != nil {
		order = canonicalOrder(items)
		key = buildLayoutKey(usableW, usableH, kerf, maxShelves, cutWeight, shelfWeight, params, items, order)
		if val, ok := p.cache.get(key); ok {
			p.sink.CacheResult(true)
			status := solver.Feasible
			if val.optimal {
				status = solver.Optimal
			}
			return shelfLayout{status: status, placements: relabel(val, items, order)}, nil
		}
		p.sink.CacheResult(false)
	}

	start := time.Now()
	layout, err := packSheet(ctx, usableW, usableH, kerf, items, maxShelves, cutWeight, shelfWeight, params)
	if err != nil {
		return shelfLayout{}, err
	}
	if layout.status == solver.Unknown {
		retry, err := packSheet(ctx, usableW, usableH, kerf, items, maxShelves, cutWeight, shelfWeight, params)
		if err != nil {
			return shelfLayout{}, err
		}
		retry.nodes += layout.nodes
		layout = retry
	}
	p.sink.SheetSolved(layout.status.String(), layout.nodes, time.Since(start).Seconds())

	if p.cache != nil && len(layout.placements) > 0 {
		p.cache.put(key, toCached(layout.placements, items, order, layout.status == solver.Optimal))
	}
	return layout, nil
}

// validateRequest rejects malformed boards and parts, geometry off the
// 0.1 mm grid, and settings the solver cannot honour.
func validateRequest(req Request, settings Settings) error {
	if settings.Kerf < 0 {
		return fmt.Errorf("%w: kerf must not be negative", ErrRequest)
	}
	if !onGrid(settings.Kerf) {
		return fmt.Errorf("%w: kerf %v is not on the 0.1 mm grid", ErrRequest, settings.Kerf)
	}
	if settings.CutWeight < 0 || settings.ShelfCountWeight < 0 {
		return fmt.Errorf("%w: objective weights must not be negative", ErrRequest)
	}
	if settings.MaxSheets < 1 {
		return fmt.Errorf("%w: sheet cap must be at least 1", ErrRequest)
	}

	b := req.Board
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	for _, v := range []float64{b.Width, b.Height, b.Trim.Left, b.Trim.Right, b.Trim.Top, b.Trim.Bottom} {
		if !onGrid(v) {
			return fmt.Errorf("%w: board %q: %v is not on the 0.1 mm grid", ErrRequest, b.Label, v)
		}
	}

	if len(req.Parts) == 0 {
		return fmt.Errorf("%w: no parts requested", ErrRequest)
	}
	seen := make(map[string]bool, len(req.Parts))
	for _, part := range req.Parts {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrRequest, err)
		}
		if seen[part.Label] {
			return fmt.Errorf("%w: duplicate part label %q", ErrRequest, part.Label)
		}
		seen[part.Label] = true
		if !onGrid(part.Width) || !onGrid(part.Height) {
			return fmt.Errorf("%w: part %q: dimensions are not on the 0.1 mm grid", ErrRequest, part.Label)
		}
	}
	return nil
}

func toPackItems(instances []model.Instance) []packItem {
	items := make([]packItem, len(instances))
	for i, inst := range instances {
		items[i] = packItem{
			uid:       inst.UID,
			label:     inst.Label,
			w:         toGrid(inst.Width),
			h:         toGrid(inst.Height),
			canRotate: inst.CanRotate,
		}
	}
	return items
}

// removePlaced filters out the instances that just got placed, keeping
// the remaining ones in request order.
func removePlaced(remaining []model.Instance, placements []model.Placement) []model.Instance {
	placed := make(map[string]bool, len(placements))
	for _, pl := range placements {
		placed[pl.UID] = true
	}
	var left []model.Instance
	for _, inst := range remaining {
		if !placed[inst.UID] {
			left = append(left, inst)
		}
	}
	return left
}

// solutionQuality is optimal only when every sheet's layout was proved
// optimal within budget.
func solutionQuality(sol model.Solution) model.Quality {
	for _, sheet := range sol.Sheets {
		if !sheet.Optimal {
			return model.QualityBestEffort
		}
	}
	return model.QualityOptimal
}
