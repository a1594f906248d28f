package config

import (
	"fmt"

	"github.com/sawkit/panelcut/internal/model"
)

// BoardConfig describes the raw board stock for a job.
type BoardConfig struct {
	Label     string  `json:"label"`
	Width     float64 `json:"width"`     // mm
	Height    float64 `json:"height"`    // mm
	Thickness float64 `json:"thickness"` // mm, informational; unset means 18
	// Trim is the untrusted factory-edge margin, applied uniformly.
	Trim float64 `json:"trim"` // mm
	// TrimEdges overrides Trim with per-edge margins when present.
	TrimEdges *TrimConfig `json:"trim_edges,omitempty"`
}

// TrimConfig gives each board edge its own margin.
type TrimConfig struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// SetDefaults applies sane defaults.
func (c *BoardConfig) SetDefaults() {
	if c.Label == "" {
		c.Label = "board"
	}
	if c.Thickness == 0 {
		c.Thickness = 18
	}
}

// Validate checks geometry and grid alignment.
func (c BoardConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("dimensions must be positive, got %gx%g", c.Width, c.Height)
	}
	if !aligned(c.Width) || !aligned(c.Height) {
		return fmt.Errorf("dimensions must sit on the 0.1mm grid, got %gx%g", c.Width, c.Height)
	}
	if c.Thickness < 0 {
		return fmt.Errorf("thickness must not be negative, got %g", c.Thickness)
	}
	trim := c.trim()
	for _, edge := range []struct {
		name string
		v    float64
	}{
		{"left", trim.Left}, {"right", trim.Right}, {"top", trim.Top}, {"bottom", trim.Bottom},
	} {
		if edge.v < 0 {
			return fmt.Errorf("trim %s must not be negative, got %g", edge.name, edge.v)
		}
		if !aligned(edge.v) {
			return fmt.Errorf("trim %s must sit on the 0.1mm grid, got %g", edge.name, edge.v)
		}
	}
	if c.Width-trim.Horizontal() <= 0 || c.Height-trim.Vertical() <= 0 {
		return fmt.Errorf("trim leaves no usable area on a %gx%g board", c.Width, c.Height)
	}
	return nil
}

// ToSpec converts the section into a board spec with a fresh ID.
func (c BoardConfig) ToSpec() model.BoardSpec {
	spec := model.NewBoardSpec(c.Label, c.Width, c.Height)
	spec.Thickness = c.Thickness
	spec.Trim = c.trim()
	return spec
}

func (c BoardConfig) trim() model.Trim {
	if c.TrimEdges != nil {
		return model.Trim{
			Left:   c.TrimEdges.Left,
			Right:  c.TrimEdges.Right,
			Top:    c.TrimEdges.Top,
			Bottom: c.TrimEdges.Bottom,
		}
	}
	return model.UniformTrim(c.Trim)
}

// PartConfig describes one required part and how many are needed.
type PartConfig struct {
	Label    string  `json:"label"`
	Width    float64 `json:"width"`  // mm
	Height   float64 `json:"height"` // mm
	Quantity int     `json:"quantity"`
	// CanRotate permits 90 degree rotation. Unset means allowed.
	CanRotate *bool         `json:"can_rotate,omitempty"`
	Banding   model.EdgeSet `json:"banding"`
}

// SetDefaults applies sane defaults.
func (c *PartConfig) SetDefaults() {
	if c.Quantity == 0 {
		c.Quantity = 1
	}
	if c.CanRotate == nil {
		rotate := true
		c.CanRotate = &rotate
	}
}

// Validate checks one part section.
func (c PartConfig) Validate() error {
	if c.Label == "" {
		return fmt.Errorf("label is required")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("dimensions must be positive, got %gx%g", c.Width, c.Height)
	}
	if !aligned(c.Width) || !aligned(c.Height) {
		return fmt.Errorf("dimensions must sit on the 0.1mm grid, got %gx%g", c.Width, c.Height)
	}
	if c.Quantity < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d", c.Quantity)
	}
	return nil
}

// ToSpec converts the section into a part spec with a fresh ID.
func (c PartConfig) ToSpec() model.PartSpec {
	spec := model.NewPartSpec(c.Label, c.Width, c.Height, c.Quantity)
	spec.CanRotate = c.CanRotate == nil || *c.CanRotate
	spec.Banding = c.Banding
	return spec
}

func validateParts(parts []PartConfig) error {
	if len(parts) == 0 {
		return fmt.Errorf("parts: at least one part is required")
	}
	seen := make(map[string]bool, len(parts))
	for i, p := range parts {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("parts[%d]: %w", i, err)
		}
		if seen[p.Label] {
			return fmt.Errorf("parts[%d]: duplicate label %q", i, p.Label)
		}
		seen[p.Label] = true
	}
	return nil
}
