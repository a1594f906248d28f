package config

import (
	"fmt"
	"time"

	"github.com/sawkit/panelcut/internal/engine"
)

// PackingConfig tunes the solver run.
type PackingConfig struct {
	Kerf             float64 `json:"kerf"`               // blade width in mm
	CutWeight        float64 `json:"cut_weight"`         // objective penalty per mm of cut
	ShelfCountWeight float64 `json:"shelf_count_weight"` // objective penalty per shelf
	MaxShelves       int     `json:"max_shelves"`        // 0 derives a bound from part heights
	MaxSheets        int     `json:"max_sheets"`         // hard cap on sheets per run
	MaxNodes         int64   `json:"max_nodes"`          // search nodes per sheet
	TimeLimitSeconds float64 `json:"time_limit_seconds"` // wall time per sheet
	CacheSize        int     `json:"cache_size"`         // layout cache entries, 0 disables
	AutoSheets       bool    `json:"auto_sheets"`        // search for the smallest workable cap
}

// DefaultPacking mirrors the engine defaults. Load seeds these before
// unmarshalling so only keys present in the file override them.
func DefaultPacking() PackingConfig {
	s := engine.DefaultSettings()
	return PackingConfig{
		Kerf:             s.Kerf,
		CutWeight:        s.CutWeight,
		ShelfCountWeight: s.ShelfCountWeight,
		MaxShelves:       s.MaxShelves,
		MaxSheets:        s.MaxSheets,
		MaxNodes:         s.MaxNodes,
		TimeLimitSeconds: s.TimeLimit.Seconds(),
		CacheSize:        s.CacheSize,
	}
}

// Validate checks ranges and grid alignment.
func (c PackingConfig) Validate() error {
	if c.Kerf < 0 {
		return fmt.Errorf("kerf must not be negative, got %g", c.Kerf)
	}
	if !aligned(c.Kerf) {
		return fmt.Errorf("kerf must sit on the 0.1mm grid, got %g", c.Kerf)
	}
	if c.CutWeight < 0 || c.ShelfCountWeight < 0 {
		return fmt.Errorf("objective weights must not be negative")
	}
	if c.MaxShelves < 0 {
		return fmt.Errorf("max_shelves must not be negative, got %d", c.MaxShelves)
	}
	if c.MaxSheets < 1 {
		return fmt.Errorf("max_sheets must be at least 1, got %d", c.MaxSheets)
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must not be negative, got %d", c.MaxNodes)
	}
	if c.TimeLimitSeconds < 0 {
		return fmt.Errorf("time_limit_seconds must not be negative, got %g", c.TimeLimitSeconds)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	return nil
}

// ToSettings converts the section into engine settings.
func (c PackingConfig) ToSettings() engine.Settings {
	return engine.Settings{
		Kerf:             c.Kerf,
		CutWeight:        c.CutWeight,
		ShelfCountWeight: c.ShelfCountWeight,
		MaxShelves:       c.MaxShelves,
		MaxSheets:        c.MaxSheets,
		MaxNodes:         c.MaxNodes,
		TimeLimit:        time.Duration(c.TimeLimitSeconds * float64(time.Second)),
		CacheSize:        c.CacheSize,
	}
}
