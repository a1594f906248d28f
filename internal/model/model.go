package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Trim represents the untrusted margin on each board edge in mm.
// Factory edges are rarely clean or square, so the packable area is the
// board minus these margins.
type Trim struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// UniformTrim returns a trim with the same margin on all four edges.
func UniformTrim(v float64) Trim {
	return Trim{Left: v, Right: v, Top: v, Bottom: v}
}

// Horizontal returns the total width lost to trim.
func (t Trim) Horizontal() float64 {
	return t.Left + t.Right
}

// Vertical returns the total height lost to trim.
func (t Trim) Vertical() float64 {
	return t.Top + t.Bottom
}

// BoardSpec represents one type of raw board to cut from.
type BoardSpec struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Width     float64 `json:"width"`     // mm
	Height    float64 `json:"height"`    // mm
	Thickness float64 `json:"thickness"` // mm, carried through to reports
	Trim      Trim    `json:"trim"`
}

func NewBoardSpec(label string, w, h float64) BoardSpec {
	return BoardSpec{
		ID:     uuid.New().String()[:8],
		Label:  label,
		Width:  w,
		Height: h,
	}
}

// UsableWidth returns the packable width after trim.
func (b BoardSpec) UsableWidth() float64 {
	return b.Width - b.Trim.Horizontal()
}

// UsableHeight returns the packable height after trim.
func (b BoardSpec) UsableHeight() float64 {
	return b.Height - b.Trim.Vertical()
}

// UsableArea returns the packable area in square mm.
func (b BoardSpec) UsableArea() float64 {
	return b.UsableWidth() * b.UsableHeight()
}

// Area returns the full board area in square mm.
func (b BoardSpec) Area() float64 {
	return b.Width * b.Height
}

// Validate checks that the board has positive dimensions and that trim
// leaves something to cut from.
func (b BoardSpec) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("board %q: dimensions must be positive", b.Label)
	}
	if b.Trim.Left < 0 || b.Trim.Right < 0 || b.Trim.Top < 0 || b.Trim.Bottom < 0 {
		return fmt.Errorf("board %q: trim must not be negative", b.Label)
	}
	if b.Thickness < 0 {
		return fmt.Errorf("board %q: thickness must not be negative", b.Label)
	}
	if b.UsableWidth() <= 0 || b.UsableHeight() <= 0 {
		return fmt.Errorf("board %q: trim leaves no usable area", b.Label)
	}
	return nil
}

// PartSpec represents a required rectangular piece and how many are needed.
type PartSpec struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Width     float64 `json:"width"`  // mm
	Height    float64 `json:"height"` // mm
	Quantity  int     `json:"quantity"`
	CanRotate bool    `json:"can_rotate"` // 90 degree rotation allowed
	Banding   EdgeSet `json:"banding"`
}

func NewPartSpec(label string, w, h float64, qty int) PartSpec {
	return PartSpec{
		ID:        uuid.New().String()[:8],
		Label:     label,
		Width:     w,
		Height:    h,
		Quantity:  qty,
		CanRotate: true,
	}
}

// Area returns the part area in square mm.
func (p PartSpec) Area() float64 {
	return p.Width * p.Height
}

// Validate checks that the part is a cuttable rectangle with at least
// one piece requested.
func (p PartSpec) Validate() error {
	if p.Label == "" {
		return errors.New("part label must not be empty")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("part %q: dimensions must be positive", p.Label)
	}
	if p.Quantity < 1 {
		return fmt.Errorf("part %q: quantity must be at least 1", p.Label)
	}
	return nil
}

// FitsUsable reports whether the part fits a usable area of the given
// size in at least one permitted orientation.
func (p PartSpec) FitsUsable(w, h float64) bool {
	if p.Width <= w+geomEpsilon && p.Height <= h+geomEpsilon {
		return true
	}
	return p.CanRotate && p.Height <= w+geomEpsilon && p.Width <= h+geomEpsilon
}

// MinPlacedHeight returns the smallest height the part can occupy on a
// board over its allowed orientations.
func (p PartSpec) MinPlacedHeight() float64 {
	if p.CanRotate {
		return math.Min(p.Width, p.Height)
	}
	return p.Height
}

// Instance represents one concrete piece to place. A part spec with
// quantity n expands into n instances with unique UIDs.
type Instance struct {
	UID       string  `json:"uid"` // "<label>#<k>", k starting at 1
	SpecID    string  `json:"spec_id"`
	Label     string  `json:"label"`
	Width     float64 `json:"width"`  // mm
	Height    float64 `json:"height"` // mm
	CanRotate bool    `json:"can_rotate"`
}

// Area returns the instance area in square mm.
func (i Instance) Area() float64 {
	return i.Width * i.Height
}

// ExpandInstances flattens part specs into individually addressable
// instances, numbered per label in input order.
func ExpandInstances(parts []PartSpec) []Instance {
	var out []Instance
	for _, p := range parts {
		for k := 1; k <= p.Quantity; k++ {
			out = append(out, Instance{
				UID:       fmt.Sprintf("%s#%d", p.Label, k),
				SpecID:    p.ID,
				Label:     p.Label,
				Width:     p.Width,
				Height:    p.Height,
				CanRotate: p.CanRotate,
			})
		}
	}
	return out
}

// Placement represents one instance placed on a sheet. Coordinates are mm
// from the bottom-left corner of the usable area; width and height are the
// placed dimensions, already swapped when rotated. Shelf is the index of
// the horizontal band the part sits in, counted from the bottom.
type Placement struct {
	UID     string  `json:"uid"`
	Label   string  `json:"label"`
	Shelf   int     `json:"shelf"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Rotated bool    `json:"rotated"`
}

// Right returns the x coordinate of the right edge.
func (p Placement) Right() float64 {
	return p.X + p.Width
}

// Top returns the y coordinate of the top edge.
func (p Placement) Top() float64 {
	return p.Y + p.Height
}

// Area returns the placed area in square mm.
func (p Placement) Area() float64 {
	return p.Width * p.Height
}

// CutOrientation distinguishes the two guillotine cut directions.
type CutOrientation int

const (
	CutHorizontal CutOrientation = iota // Full-width cut separating strips
	CutVertical                         // Cut inside a strip separating parts
)

func (o CutOrientation) String() string {
	if o == CutVertical {
		return "vertical"
	}
	return "horizontal"
}

// Cut represents one saw cut as a segment in usable-area coordinates.
type Cut struct {
	Stage       int            `json:"stage"` // 1 = strip separation, 2 = part separation
	Orientation CutOrientation `json:"orientation"`
	X1          float64        `json:"x1"`
	Y1          float64        `json:"y1"`
	X2          float64        `json:"x2"`
	Y2          float64        `json:"y2"`
}

// Length returns the cut length in mm.
func (c Cut) Length() float64 {
	return math.Abs(c.X2-c.X1) + math.Abs(c.Y2-c.Y1)
}

// Sheet represents one board of the solution with its placements, the
// cuts needed to free them, and the measured material usage.
type Sheet struct {
	Index      int         `json:"index"`
	Board      BoardSpec   `json:"board"`
	Placements []Placement `json:"placements"`
	Cuts       []Cut       `json:"cuts"`
	Optimal    bool        `json:"optimal"` // Placement proved optimal for this sheet

	InternalCutLength float64 `json:"internal_cut_length"` // mm
	TrimCutLength     float64 `json:"trim_cut_length"`     // mm
	UsedArea          float64 `json:"used_area"`           // sq mm
	WasteArea         float64 `json:"waste_area"`          // sq mm
}

// TotalCutLength returns internal plus trim-charged cut length.
func (s Sheet) TotalCutLength() float64 {
	return s.InternalCutLength + s.TrimCutLength
}

// Efficiency returns the usable-area usage percentage.
func (s Sheet) Efficiency() float64 {
	ua := s.Board.UsableArea()
	if ua == 0 {
		return 0
	}
	return (s.UsedArea / ua) * 100.0
}

// Quality classifies a whole solution.
type Quality string

const (
	// QualityOptimal means every sheet placement was proved optimal.
	QualityOptimal Quality = "optimal"
	// QualityBestEffort means at least one sheet hit a budget before the
	// proof finished.
	QualityBestEffort Quality = "best_effort"
)

// Solution holds the full multi-sheet result.
type Solution struct {
	ID       string     `json:"id"`
	Sheets   []Sheet    `json:"sheets"`
	Unplaced []Instance `json:"unplaced,omitempty"`
	Quality  Quality    `json:"quality"`
	Capped   bool       `json:"capped"` // Sheet cap reached before all parts were placed
}

func NewSolution() Solution {
	return Solution{
		ID:      uuid.New().String()[:8],
		Quality: QualityOptimal,
	}
}

// PlacedCount returns the number of placed instances across all sheets.
func (s Solution) PlacedCount() int {
	var n int
	for _, sh := range s.Sheets {
		n += len(sh.Placements)
	}
	return n
}

// SheetCount returns the number of sheets holding at least one
// placement.
func (s Solution) SheetCount() int {
	var n int
	for _, sh := range s.Sheets {
		if len(sh.Placements) > 0 {
			n++
		}
	}
	return n
}

// TotalInternalCutLength returns the internal cut length over all sheets.
func (s Solution) TotalInternalCutLength() float64 {
	var total float64
	for _, sh := range s.Sheets {
		total += sh.InternalCutLength
	}
	return total
}

// TotalTrimCutLength returns the trim-charged cut length over all sheets.
func (s Solution) TotalTrimCutLength() float64 {
	var total float64
	for _, sh := range s.Sheets {
		total += sh.TrimCutLength
	}
	return total
}

// TotalCutLength returns the full billable cut length over all sheets.
func (s Solution) TotalCutLength() float64 {
	return s.TotalInternalCutLength() + s.TotalTrimCutLength()
}

// TotalUsedArea returns the placed part area over all sheets in square mm.
func (s Solution) TotalUsedArea() float64 {
	var total float64
	for _, sh := range s.Sheets {
		total += sh.UsedArea
	}
	return total
}

// TotalWasteArea returns the waste over all sheets in square mm.
func (s Solution) TotalWasteArea() float64 {
	var total float64
	for _, sh := range s.Sheets {
		total += sh.WasteArea
	}
	return total
}

// TotalEfficiency returns overall usable-area usage percentage.
func (s Solution) TotalEfficiency() float64 {
	var used, usable float64
	for _, sh := range s.Sheets {
		used += sh.UsedArea
		usable += sh.Board.UsableArea()
	}
	if usable == 0 {
		return 0
	}
	return (used / usable) * 100.0
}
