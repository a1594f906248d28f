package model

import (
	"math"
	"strings"
)

// EdgeSet marks which edges of a part receive edge banding.
type EdgeSet struct {
	Top    bool `json:"top"`
	Bottom bool `json:"bottom"`
	Left   bool `json:"left"`
	Right  bool `json:"right"`
}

// HasAny reports whether at least one edge is banded.
func (e EdgeSet) HasAny() bool {
	return e.Top || e.Bottom || e.Left || e.Right
}

// EdgeCount returns the number of banded edges.
func (e EdgeSet) EdgeCount() int {
	var n int
	for _, b := range []bool{e.Top, e.Bottom, e.Left, e.Right} {
		if b {
			n++
		}
	}
	return n
}

// LinearLength returns the banding length in mm for one piece of the
// given dimensions.
func (e EdgeSet) LinearLength(w, h float64) float64 {
	var total float64
	if e.Top {
		total += w
	}
	if e.Bottom {
		total += w
	}
	if e.Left {
		total += h
	}
	if e.Right {
		total += h
	}
	return total
}

// String renders the banded edges as e.g. "T+B+L".
func (e EdgeSet) String() string {
	var parts []string
	if e.Top {
		parts = append(parts, "T")
	}
	if e.Bottom {
		parts = append(parts, "B")
	}
	if e.Left {
		parts = append(parts, "L")
	}
	if e.Right {
		parts = append(parts, "R")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// BandingSummary holds the calculated edge banding requirements for a
// cut list.
type BandingSummary struct {
	TotalLinearMM    float64 `json:"total_linear_mm"`     // Total banding length in mm (no waste)
	TotalLinearM     float64 `json:"total_linear_m"`      // Total banding length in meters (no waste)
	WastePercent     float64 `json:"waste_percent"`       // Waste percentage applied
	TotalWithWasteMM float64 `json:"total_with_waste_mm"` // Total with waste in mm
	TotalWithWasteM  float64 `json:"total_with_waste_m"`  // Total with waste in meters
	PartCount        int     `json:"part_count"`          // Number of individual pieces needing banding
	EdgeCount        int     `json:"edge_count"`          // Total number of edges needing banding
}

// CalculateBanding computes the total edge banding needed for a list of
// parts. wastePercent is the additional percentage to add for waste
// (e.g. 10 for 10%).
func CalculateBanding(parts []PartSpec, wastePercent float64) BandingSummary {
	var totalMM float64
	var partCount, edgeCount int

	for _, p := range parts {
		if !p.Banding.HasAny() {
			continue
		}
		lengthPerPiece := p.Banding.LinearLength(p.Width, p.Height)
		edgesPerPiece := p.Banding.EdgeCount()

		totalMM += lengthPerPiece * float64(p.Quantity)
		partCount += p.Quantity
		edgeCount += edgesPerPiece * p.Quantity
	}

	wasteFactor := 1.0 + (wastePercent / 100.0)
	totalWithWaste := totalMM * wasteFactor

	return BandingSummary{
		TotalLinearMM:    totalMM,
		TotalLinearM:     totalMM / 1000.0,
		WastePercent:     wastePercent,
		TotalWithWasteMM: math.Ceil(totalWithWaste), // Round up
		TotalWithWasteM:  math.Ceil(totalWithWaste) / 1000.0,
		PartCount:        partCount,
		EdgeCount:        edgeCount,
	}
}

// PartBanding is a per-part breakdown of edge banding needs.
type PartBanding struct {
	Label         string  `json:"label"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Quantity      int     `json:"quantity"`
	Edges         string  `json:"edges"`           // e.g. "T+B+L+R"
	LengthPerUnit float64 `json:"length_per_unit"` // mm per piece
	TotalLength   float64 `json:"total_length"`    // mm for all pieces
}

// CalculatePartBanding returns a breakdown of banding per part type.
func CalculatePartBanding(parts []PartSpec) []PartBanding {
	var results []PartBanding
	for _, p := range parts {
		if !p.Banding.HasAny() {
			continue
		}
		lengthPerUnit := p.Banding.LinearLength(p.Width, p.Height)
		results = append(results, PartBanding{
			Label:         p.Label,
			Width:         p.Width,
			Height:        p.Height,
			Quantity:      p.Quantity,
			Edges:         p.Banding.String(),
			LengthPerUnit: lengthPerUnit,
			TotalLength:   lengthPerUnit * float64(p.Quantity),
		})
	}
	return results
}
