// Package config loads a cutting job from a JSON or YAML file with
// optional environment overrides. Every section validates on load, so a
// bad job fails before any solving starts.
package config

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sawkit/panelcut/internal/model"
)

type Config struct {
	Board   BoardConfig       `json:"board"`
	Parts   []PartConfig      `json:"parts"`
	Packing PackingConfig     `json:"packing"`
	Pricing *model.PriceModel `json:"pricing,omitempty"`
	Report  ReportConfig      `json:"report"`
}

// Load reads the file at path, applies PC_* environment overrides
// (PC_PACKING__KERF=4 sets packing.kerf) and validates the result.
// Numeric packing and report defaults are seeded before unmarshalling,
// so an explicit zero in the file stays a zero.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("PC_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "pc_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Config{
		Packing: DefaultPacking(),
		Report:  DefaultReport(),
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Board.SetDefaults()
	for i := range cfg.Parts {
		cfg.Parts[i].SetDefaults()
	}
	if err := cfg.Board.Validate(); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	if err := validateParts(cfg.Parts); err != nil {
		return nil, err
	}
	if err := cfg.Packing.Validate(); err != nil {
		return nil, fmt.Errorf("packing: %w", err)
	}
	if err := cfg.Report.Validate(); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	if cfg.Pricing != nil {
		if err := validatePricing(*cfg.Pricing); err != nil {
			return nil, fmt.Errorf("pricing: %w", err)
		}
	}
	return &cfg, nil
}

// PartSpecs converts the part sections into model specs. Call it once
// per job; every call mints fresh spec IDs.
func (c *Config) PartSpecs() []model.PartSpec {
	specs := make([]model.PartSpec, 0, len(c.Parts))
	for _, p := range c.Parts {
		specs = append(specs, p.ToSpec())
	}
	return specs
}

func validatePricing(pm model.PriceModel) error {
	if pm.PricePerMM < 0 || pm.PricePerSheet < 0 || pm.MinBillableMM < 0 {
		return fmt.Errorf("rates must not be negative")
	}
	if pm.InternalPerMM != nil && *pm.InternalPerMM < 0 {
		return fmt.Errorf("internal_per_mm must not be negative")
	}
	if pm.TrimPerMM != nil && *pm.TrimPerMM < 0 {
		return fmt.Errorf("trim_per_mm must not be negative")
	}
	return nil
}

// aligned reports whether v sits on the 0.1 mm measurement grid.
func aligned(v float64) bool {
	scaled := v * 10
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}
