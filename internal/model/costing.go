package model

// PriceModel describes how a cutting service charges for saw work.
// Separate rates for internal and trim cuts are optional; nil falls back
// to the base rate.
type PriceModel struct {
	PricePerMM    float64  `json:"price_per_mm"`              // Base rate per mm of cut
	InternalPerMM *float64 `json:"internal_per_mm,omitempty"` // Override for internal cuts
	TrimPerMM     *float64 `json:"trim_per_mm,omitempty"`     // Override for trim cuts
	PricePerSheet float64  `json:"price_per_sheet"`           // Flat fee per sheet used
	MinBillableMM float64  `json:"min_billable_mm"`           // Minimum billed cut length per sheet
}

func (pm PriceModel) internalRate() float64 {
	if pm.InternalPerMM != nil {
		return *pm.InternalPerMM
	}
	return pm.PricePerMM
}

func (pm PriceModel) trimRate() float64 {
	if pm.TrimPerMM != nil {
		return *pm.TrimPerMM
	}
	return pm.PricePerMM
}

// SheetCost holds the cutting charge breakdown for one sheet.
type SheetCost struct {
	SheetIndex     int     `json:"sheet_index"`
	InternalLength float64 `json:"internal_length"` // mm
	TrimLength     float64 `json:"trim_length"`     // mm
	BillableLength float64 `json:"billable_length"` // mm, after the per-sheet minimum
	CutCost        float64 `json:"cut_cost"`
	SheetFee       float64 `json:"sheet_fee"`
	Total          float64 `json:"total"`
}

// SolutionCost aggregates the cutting charges for a whole solution.
type SolutionCost struct {
	Sheets    []SheetCost `json:"sheets"`
	CutCost   float64     `json:"cut_cost"`
	SheetFees float64     `json:"sheet_fees"`
	Total     float64     `json:"total"`
}

// CostSheet prices the cuts of one sheet. Length below the per-sheet
// billing minimum is charged at the base rate.
func CostSheet(sheet Sheet, pm PriceModel) SheetCost {
	internal := sheet.InternalCutLength
	trim := sheet.TrimCutLength
	total := internal + trim
	billable := total
	if billable < pm.MinBillableMM {
		billable = pm.MinBillableMM
	}

	cutCost := internal*pm.internalRate() + trim*pm.trimRate() + (billable-total)*pm.PricePerMM

	return SheetCost{
		SheetIndex:     sheet.Index,
		InternalLength: internal,
		TrimLength:     trim,
		BillableLength: billable,
		CutCost:        cutCost,
		SheetFee:       pm.PricePerSheet,
		Total:          cutCost + pm.PricePerSheet,
	}
}

// CostSolution prices every sheet of a solution and sums the totals.
func CostSolution(sol Solution, pm PriceModel) SolutionCost {
	out := SolutionCost{}
	for _, sh := range sol.Sheets {
		sc := CostSheet(sh, pm)
		out.Sheets = append(out.Sheets, sc)
		out.CutCost += sc.CutCost
		out.SheetFees += sc.SheetFee
		out.Total += sc.Total
	}
	return out
}
