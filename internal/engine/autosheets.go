package engine

import (
	"context"
	"math"

	"github.com/sawkit/panelcut/internal/model"
)

// PackAuto packs with an escalating sheet cap. It starts at the area
// lower bound, raises the cap one sheet at a time while the demand
// stays capped, and gives up at the configured MaxSheets ceiling,
// returning the final capped attempt. Attempts share their leading
// sheets, so the layout cache makes escalation cheap.
func (p *Packer) PackAuto(ctx context.Context, req Request) (model.Solution, error) {
	settings := p.settings
	ceiling := settings.MaxSheets
	limit := sheetLowerBound(req)
	if limit > ceiling {
		limit = ceiling
	}
	for {
		settings.MaxSheets = limit
		sol, err := p.pack(ctx, req, settings)
		if err != nil {
			return sol, err
		}
		if !sol.Capped || limit >= ceiling {
			return sol, nil
		}
		p.log.Infof("cap of %d sheets too small, retrying with %d", limit, limit+1)
		limit++
	}
}

// sheetLowerBound is the area argument: no run finishes in fewer
// sheets than total part area over usable sheet area.
func sheetLowerBound(req Request) int {
	usable := req.Board.UsableArea()
	if usable <= 0 {
		return 1
	}
	var area float64
	for _, part := range req.Parts {
		area += part.Area() * float64(part.Quantity)
	}
	n := int(math.Ceil(area/usable - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}
