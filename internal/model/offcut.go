package model

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// Offcut represents a usable rectangular remnant left on a sheet after
// cutting. Coordinates are mm from the bottom-left corner of the usable
// area, like placements.
type Offcut struct {
	ID         string  `json:"id"`
	SheetIndex int     `json:"sheet_index"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`  // mm
	Height     float64 `json:"height"` // mm
	Value      float64 `json:"value"`  // Share of the sheet price proportional to area (0 if unpriced)
}

// Area returns the area of the offcut in square mm.
func (o Offcut) Area() float64 {
	return o.Width * o.Height
}

// ToBoardSpec converts an offcut into a trimless board for a follow-up
// run. The saw already produced clean edges, so no new trim is needed.
func (o Offcut) ToBoardSpec(label string) BoardSpec {
	return NewBoardSpec(label, o.Width, o.Height)
}

// MinOffcutDimension is the minimum width or height (in mm) for a remnant
// to be considered a usable offcut. Remnants smaller than this are waste.
const MinOffcutDimension = 50.0

// MinOffcutArea is the minimum area (in sq mm) for a remnant to be considered usable.
const MinOffcutArea = 10000.0 // 100mm x 100mm equivalent

// DetectOffcuts identifies the rectangular remnants of one sheet that are
// large enough to reuse: the strip right of all placements and the strip
// above them. pricePerSheet distributes the board price over the offcuts
// by area; pass 0 to skip pricing.
func DetectOffcuts(sheet Sheet, kerf, pricePerSheet float64) []Offcut {
	usableW := sheet.Board.UsableWidth()
	usableH := sheet.Board.UsableHeight()

	if len(sheet.Placements) == 0 {
		return []Offcut{{
			ID:         uuid.New().String()[:8],
			SheetIndex: sheet.Index,
			X:          0,
			Y:          0,
			Width:      usableW,
			Height:     usableH,
			Value:      pricePerSheet,
		}}
	}

	// Everything right of or above this envelope is untouched material.
	var maxRight, maxTop float64
	for _, p := range sheet.Placements {
		right := p.Right() + kerf
		top := p.Top() + kerf
		if right > maxRight {
			maxRight = right
		}
		if top > maxTop {
			maxTop = top
		}
	}

	var offcuts []Offcut

	rightStripW := usableW - maxRight
	if rightStripW >= MinOffcutDimension && usableH >= MinOffcutDimension && rightStripW*usableH >= MinOffcutArea {
		offcuts = append(offcuts, Offcut{
			ID:         uuid.New().String()[:8],
			SheetIndex: sheet.Index,
			X:          maxRight,
			Y:          0,
			Width:      rightStripW,
			Height:     usableH,
		})
	}

	// Top strip, clipped at the placement envelope so it cannot overlap
	// the right strip.
	topStripH := usableH - maxTop
	topStripW := math.Min(maxRight, usableW)
	if topStripH >= MinOffcutDimension && topStripW >= MinOffcutDimension && topStripH*topStripW >= MinOffcutArea {
		offcuts = append(offcuts, Offcut{
			ID:         uuid.New().String()[:8],
			SheetIndex: sheet.Index,
			X:          0,
			Y:          maxTop,
			Width:      topStripW,
			Height:     topStripH,
		})
	}

	if pricePerSheet > 0 {
		boardArea := sheet.Board.Area()
		for i := range offcuts {
			offcuts[i].Value = (offcuts[i].Area() / boardArea) * pricePerSheet
		}
	}

	sort.Slice(offcuts, func(i, j int) bool {
		return offcuts[i].Area() > offcuts[j].Area()
	})

	return offcuts
}

// DetectAllOffcuts finds offcuts across all sheets of a solution.
func DetectAllOffcuts(sol Solution, kerf, pricePerSheet float64) []Offcut {
	var all []Offcut
	for _, sheet := range sol.Sheets {
		all = append(all, DetectOffcuts(sheet, kerf, pricePerSheet)...)
	}
	return all
}

// TotalOffcutArea returns the total area of all offcuts in square mm.
func TotalOffcutArea(offcuts []Offcut) float64 {
	var total float64
	for _, o := range offcuts {
		total += o.Area()
	}
	return total
}
