package model

import (
	"fmt"
	"math"
)

// geomEpsilon absorbs float rounding in geometric checks. Placements live
// on a 0.1 mm grid, so anything past this tolerance is a real violation.
const geomEpsilon = 0.001

func specsByLabel(parts []PartSpec) map[string]PartSpec {
	m := make(map[string]PartSpec, len(parts))
	for _, p := range parts {
		if _, ok := m[p.Label]; !ok {
			m[p.Label] = p
		}
	}
	return m
}

// ValidateSheet checks the geometric invariants of one sheet: placements
// inside the usable area, pairwise disjoint, with dimensions and rotation
// matching their part spec. Returns violation descriptions; empty means
// the sheet is sound.
func ValidateSheet(sheet Sheet, parts []PartSpec) []string {
	specs := specsByLabel(parts)
	w := sheet.Board.UsableWidth()
	h := sheet.Board.UsableHeight()

	var violations []string
	report := func(format string, args ...interface{}) {
		violations = append(violations, fmt.Sprintf("sheet %d: ", sheet.Index)+fmt.Sprintf(format, args...))
	}

	for _, p := range sheet.Placements {
		if p.X < -geomEpsilon || p.Y < -geomEpsilon || p.Right() > w+geomEpsilon || p.Top() > h+geomEpsilon {
			report("%s at (%.1f, %.1f) %gx%g exceeds usable area %gx%g", p.UID, p.X, p.Y, p.Width, p.Height, w, h)
		}
		spec, ok := specs[p.Label]
		if !ok {
			report("%s references unknown part %q", p.UID, p.Label)
			continue
		}
		var wantW, wantH float64
		if p.Rotated {
			wantW, wantH = spec.Height, spec.Width
		} else {
			wantW, wantH = spec.Width, spec.Height
		}
		if math.Abs(p.Width-wantW) > geomEpsilon || math.Abs(p.Height-wantH) > geomEpsilon {
			report("%s placed as %gx%g but spec is %gx%g (rotated=%v)", p.UID, p.Width, p.Height, spec.Width, spec.Height, p.Rotated)
		}
		if p.Rotated && !spec.CanRotate {
			report("%s is rotated but part %q does not allow rotation", p.UID, p.Label)
		}
	}

	for i := 0; i < len(sheet.Placements); i++ {
		for j := i + 1; j < len(sheet.Placements); j++ {
			a, b := sheet.Placements[i], sheet.Placements[j]
			if a.X < b.Right()-geomEpsilon && b.X < a.Right()-geomEpsilon &&
				a.Y < b.Top()-geomEpsilon && b.Y < a.Top()-geomEpsilon {
				report("%s overlaps %s", a.UID, b.UID)
			}
		}
	}

	if sheet.WasteArea < -geomEpsilon {
		report("negative waste area %.3f", sheet.WasteArea)
	}

	return violations
}

// ValidateSolution checks every sheet and the demand accounting: each
// instance expanded from the part list must appear exactly once, either
// placed or reported unplaced.
func ValidateSolution(sol Solution, parts []PartSpec) []string {
	var violations []string
	for _, sh := range sol.Sheets {
		violations = append(violations, ValidateSheet(sh, parts)...)
	}

	expanded := ExpandInstances(parts)
	want := make(map[string]bool, len(expanded))
	for _, inst := range expanded {
		want[inst.UID] = true
	}
	seen := make(map[string]bool)
	account := func(uid, where string) {
		if !want[uid] {
			violations = append(violations, fmt.Sprintf("%s %s does not match any expanded instance", where, uid))
			return
		}
		if seen[uid] {
			violations = append(violations, fmt.Sprintf("%s %s appears more than once", where, uid))
			return
		}
		seen[uid] = true
	}
	for _, sh := range sol.Sheets {
		for _, p := range sh.Placements {
			account(p.UID, "placement")
		}
	}
	for _, inst := range sol.Unplaced {
		account(inst.UID, "unplaced instance")
	}
	for _, inst := range expanded {
		if !seen[inst.UID] {
			violations = append(violations, fmt.Sprintf("instance %s is neither placed nor reported unplaced", inst.UID))
		}
	}
	return violations
}
