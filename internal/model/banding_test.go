package model

import (
	"testing"
)

func TestEdgeSetBasics(t *testing.T) {
	none := EdgeSet{}
	if none.HasAny() {
		t.Error("empty edge set should have no banding")
	}
	if none.EdgeCount() != 0 {
		t.Errorf("expected 0 edges, got %d", none.EdgeCount())
	}
	if none.String() != "none" {
		t.Errorf("expected 'none', got %s", none.String())
	}

	all := EdgeSet{Top: true, Bottom: true, Left: true, Right: true}
	if all.EdgeCount() != 4 {
		t.Errorf("expected 4 edges, got %d", all.EdgeCount())
	}
	if all.String() != "T+B+L+R" {
		t.Errorf("expected T+B+L+R, got %s", all.String())
	}
}

func TestEdgeSetLinearLength(t *testing.T) {
	tests := []struct {
		name     string
		edges    EdgeSet
		expected float64
	}{
		{"top only", EdgeSet{Top: true}, 600},
		{"top and bottom", EdgeSet{Top: true, Bottom: true}, 1200},
		{"left and right", EdgeSet{Left: true, Right: true}, 800},
		{"all four", EdgeSet{Top: true, Bottom: true, Left: true, Right: true}, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.edges.LinearLength(600, 400)
			if got != tt.expected {
				t.Errorf("LinearLength(600, 400) = %.1f, want %.1f", got, tt.expected)
			}
		})
	}
}

func TestCalculateBanding(t *testing.T) {
	front := NewPartSpec("Front", 600, 400, 2)
	front.Banding = EdgeSet{Top: true, Bottom: true, Left: true, Right: true}
	shelf := NewPartSpec("Shelf", 500, 300, 3)
	shelf.Banding = EdgeSet{Top: true}
	bare := NewPartSpec("Back", 800, 600, 1)

	summary := CalculateBanding([]PartSpec{front, shelf, bare}, 10)

	// Front: 2000mm x 2, Shelf: 500mm x 3
	if summary.TotalLinearMM != 5500 {
		t.Errorf("expected 5500mm, got %.1f", summary.TotalLinearMM)
	}
	if summary.TotalWithWasteMM != 6050 {
		t.Errorf("expected 6050mm with 10%% waste, got %.1f", summary.TotalWithWasteMM)
	}
	if summary.PartCount != 5 {
		t.Errorf("expected 5 pieces, got %d", summary.PartCount)
	}
	if summary.EdgeCount != 4*2+1*3 {
		t.Errorf("expected 11 edges, got %d", summary.EdgeCount)
	}
}

func TestCalculateBandingNoBandedParts(t *testing.T) {
	summary := CalculateBanding([]PartSpec{NewPartSpec("Plain", 100, 100, 5)}, 10)
	if summary.TotalLinearMM != 0 || summary.PartCount != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}

func TestCalculatePartBanding(t *testing.T) {
	front := NewPartSpec("Front", 600, 400, 2)
	front.Banding = EdgeSet{Top: true, Left: true}
	bare := NewPartSpec("Back", 800, 600, 1)

	rows := CalculatePartBanding([]PartSpec{front, bare})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Edges != "T+L" {
		t.Errorf("expected T+L, got %s", rows[0].Edges)
	}
	if rows[0].LengthPerUnit != 1000 {
		t.Errorf("expected 1000mm per unit, got %.1f", rows[0].LengthPerUnit)
	}
	if rows[0].TotalLength != 2000 {
		t.Errorf("expected 2000mm total, got %.1f", rows[0].TotalLength)
	}
}
