package model

import "math"

// PurchaseEstimate holds a quick sheet purchasing estimate computed from
// areas alone, before any packing runs. It is a shopping aid, not a
// packing guarantee.
type PurchaseEstimate struct {
	TotalPartArea     float64 `json:"total_part_area"`     // Kerf-inflated part area (sq mm)
	UsableSheetArea   float64 `json:"usable_sheet_area"`   // Packable area of one sheet (sq mm)
	SheetsNeededExact float64 `json:"sheets_needed_exact"` // Exact fractional number of sheets
	SheetsNeededMin   int     `json:"sheets_needed_min"`   // Minimum sheets (ceiling of exact)
	SheetsWithWaste   int     `json:"sheets_with_waste"`   // Recommended sheets including waste factor
	WastePercent      float64 `json:"waste_percent"`       // Waste factor applied (e.g. 15 for 15%)
	EstimatedCost     float64 `json:"estimated_cost"`      // Total cost if pricing available
	PricePerSheet     float64 `json:"price_per_sheet"`     // Price used for estimation
	KerfWidth         float64 `json:"kerf_width"`          // Kerf width used in calculation
}

// EstimatePurchase computes how many boards to buy for a cut list. Each
// part is inflated by the kerf on both axes to account for saw loss, and
// only the usable area after trim counts as capacity.
func EstimatePurchase(parts []PartSpec, board BoardSpec, kerf, wastePercent, pricePerSheet float64) PurchaseEstimate {
	var totalPartArea float64
	for _, p := range parts {
		partW := p.Width + kerf
		partH := p.Height + kerf
		totalPartArea += partW * partH * float64(p.Quantity)
	}

	usable := board.UsableArea()
	if usable <= 0 {
		return PurchaseEstimate{
			TotalPartArea: totalPartArea,
			WastePercent:  wastePercent,
			KerfWidth:     kerf,
		}
	}

	exactSheets := totalPartArea / usable
	minSheets := int(math.Ceil(exactSheets))

	wasteFactor := 1.0 + (wastePercent / 100.0)
	sheetsWithWaste := int(math.Ceil(exactSheets * wasteFactor))
	if sheetsWithWaste < minSheets {
		sheetsWithWaste = minSheets
	}

	return PurchaseEstimate{
		TotalPartArea:     totalPartArea,
		UsableSheetArea:   usable,
		SheetsNeededExact: exactSheets,
		SheetsNeededMin:   minSheets,
		SheetsWithWaste:   sheetsWithWaste,
		WastePercent:      wastePercent,
		EstimatedCost:     float64(sheetsWithWaste) * pricePerSheet,
		PricePerSheet:     pricePerSheet,
		KerfWidth:         kerf,
	}
}
