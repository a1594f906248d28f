// Package export renders finished solutions for downstream tools.
package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sawkit/panelcut/internal/model"
)

// DocumentVersion tags the envelope layout. Bump it when a field changes
// meaning, not when fields are added.
const DocumentVersion = 1

// Document is the versioned JSON envelope for one packing run. Optional
// blocks stay nil unless the caller attaches them.
type Document struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Board     model.BoardSpec `json:"board"`
	Kerf      float64         `json:"kerf"` // mm

	Quality  model.Quality    `json:"quality"`
	Capped   bool             `json:"capped"`
	Sheets   []model.Sheet    `json:"sheets"`
	Unplaced []model.Instance `json:"unplaced,omitempty"`
	Totals   Totals           `json:"totals"`

	Cost     *model.SolutionCost     `json:"cost,omitempty"`
	Offcuts  []model.Offcut          `json:"offcuts,omitempty"`
	Banding  *model.BandingSummary   `json:"banding,omitempty"`
	Estimate *model.PurchaseEstimate `json:"estimate,omitempty"`
}

// Totals summarizes the run for readers that skip the per-sheet detail.
type Totals struct {
	Sheets            int     `json:"sheets"`
	PartsPlaced       int     `json:"parts_placed"`
	PartsUnplaced     int     `json:"parts_unplaced"`
	InternalCutLength float64 `json:"internal_cut_length"` // mm
	TrimCutLength     float64 `json:"trim_cut_length"`     // mm
	UsedArea          float64 `json:"used_area"`           // sq mm
	WasteArea         float64 `json:"waste_area"`          // sq mm
	Efficiency        float64 `json:"efficiency"`          // percent
}

// NewDocument assembles the envelope for a solved request.
func NewDocument(board model.BoardSpec, kerf float64, sol model.Solution) Document {
	return Document{
		Version:   DocumentVersion,
		CreatedAt: time.Now().UTC(),
		Board:     board,
		Kerf:      kerf,
		Quality:   sol.Quality,
		Capped:    sol.Capped,
		Sheets:    sol.Sheets,
		Unplaced:  sol.Unplaced,
		Totals: Totals{
			Sheets:            sol.SheetCount(),
			PartsPlaced:       sol.PlacedCount(),
			PartsUnplaced:     len(sol.Unplaced),
			InternalCutLength: sol.TotalInternalCutLength(),
			TrimCutLength:     sol.TotalTrimCutLength(),
			UsedArea:          sol.TotalUsedArea(),
			WasteArea:         sol.TotalWasteArea(),
			Efficiency:        sol.TotalEfficiency(),
		},
	}
}

// WriteJSON writes the document to w, indented when pretty is set. The
// output always ends with a newline.
func WriteJSON(w io.Writer, doc Document, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}
