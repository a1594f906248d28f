package config

import "fmt"

// ReportConfig controls what the runner emits alongside the layout.
type ReportConfig struct {
	Pretty bool `json:"pretty"` // indent the JSON document
	// Offcuts includes reusable leftover strips in the document.
	Offcuts bool `json:"offcuts"`
	// SheetPrice is the board purchase price. When positive the
	// document carries a purchase estimate, and offcuts get a
	// proportional value.
	SheetPrice float64 `json:"sheet_price"`
	// WastePercent is the planning allowance applied by the purchase
	// estimate and the banding summary.
	WastePercent float64 `json:"waste_percent"`
}

// DefaultReport returns the report defaults seeded before unmarshalling.
func DefaultReport() ReportConfig {
	return ReportConfig{
		Pretty:       true,
		WastePercent: 10,
	}
}

// Validate checks ranges.
func (c ReportConfig) Validate() error {
	if c.SheetPrice < 0 {
		return fmt.Errorf("sheet_price must not be negative, got %g", c.SheetPrice)
	}
	if c.WastePercent < 0 {
		return fmt.Errorf("waste_percent must not be negative, got %g", c.WastePercent)
	}
	return nil
}
