// panelcut: shelf-based panel saw planner
//
// Reads a cutting job from a JSON or YAML config file, packs the parts
// onto as few boards as the solver manages and writes the layout, the
// cut plan and the material metrics as JSON on stdout.
//
// Usage:
//   panelcut [config-path]
//
// The config path defaults to panelcut.json. Settings in the file can
// be overridden through PC_* environment variables, for example
// PC_PACKING__KERF=4.
//
// Build:
//   go build -o panelcut ./cmd/panelcut

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sawkit/panelcut/internal/config"
	"github.com/sawkit/panelcut/internal/engine"
	"github.com/sawkit/panelcut/internal/export"
	"github.com/sawkit/panelcut/internal/logging"
	"github.com/sawkit/panelcut/internal/model"
)

const defaultConfigPath = "panelcut.json"

func main() {
	path := defaultConfigPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if err := run(path); err != nil {
		fmt.Fprintln(os.Stderr, "panelcut:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logging.New("panelcut")
	packer := engine.New(cfg.Packing.ToSettings(), log, nil)

	parts := cfg.PartSpecs()
	req := engine.Request{Board: cfg.Board.ToSpec(), Parts: parts}

	var sol model.Solution
	if cfg.Packing.AutoSheets {
		sol, err = packer.PackAuto(ctx, req)
	} else {
		sol, err = packer.Pack(ctx, req)
	}
	if err != nil {
		return err
	}

	doc := export.NewDocument(req.Board, cfg.Packing.Kerf, sol)
	if cfg.Pricing != nil {
		cost := model.CostSolution(sol, *cfg.Pricing)
		doc.Cost = &cost
	}
	if cfg.Report.Offcuts {
		doc.Offcuts = model.DetectAllOffcuts(sol, cfg.Packing.Kerf, cfg.Report.SheetPrice)
	}
	if hasBanding(parts) {
		banding := model.CalculateBanding(parts, cfg.Report.WastePercent)
		doc.Banding = &banding
	}
	if cfg.Report.SheetPrice > 0 {
		est := model.EstimatePurchase(parts, req.Board, cfg.Packing.Kerf, cfg.Report.WastePercent, cfg.Report.SheetPrice)
		doc.Estimate = &est
	}

	if err := export.WriteJSON(os.Stdout, doc, cfg.Report.Pretty); err != nil {
		return fmt.Errorf("write solution: %w", err)
	}
	return nil
}

func hasBanding(parts []model.PartSpec) bool {
	for _, p := range parts {
		if p.Banding.HasAny() {
			return true
		}
	}
	return false
}
