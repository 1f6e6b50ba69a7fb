package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/openfluke/digitscope/engine"
	"github.com/openfluke/digitscope/nn"
	"github.com/openfluke/digitscope/server"
	"github.com/openfluke/digitscope/weights"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	modelPath := fs.String("model", "model_weights.json", "weights file (.json or .safetensors)")
	center := fs.Bool("center", true, "centre drawings unless a request says otherwise")
	threshold := fs.Float64("edge-threshold", 0.001, "minimum |activation| and |weight| for an edge")
	maxNodes := fs.Int("max-nodes", 64, "skip edges for layers wider than this (0 = no limit)")
	observe := fs.String("observe", "", "POST per-layer stats to this URL")
	verbose := fs.Bool("verbose", false, "log per-layer stats for every prediction")
	fs.Parse(args)

	cfg := engine.DefaultConfig()
	cfg.Edges.Threshold = *threshold
	cfg.Edges.MaxNodes = *maxNodes
	switch {
	case *observe != "":
		cfg.Observer = nn.NewHTTPObserver(*observe)
	case *verbose:
		cfg.Observer = &nn.ConsoleObserver{}
	}

	store := weights.NewStore(*modelPath)
	e := engine.New(store, cfg)

	// Load eagerly so a bad file fails at startup rather than on the first request
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	bundle, err := e.Model(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", *modelPath, err)
	}
	log.Printf("📦 Loaded %s: %d layers, tags %v, %d -> %d",
		*modelPath, len(bundle.Layers), bundle.Tags(), bundle.InDim(), bundle.OutDim())

	modelID := strings.TrimSuffix(filepath.Base(*modelPath), filepath.Ext(*modelPath))
	handler := server.New(e, server.Options{ModelID: modelID, Center: *center})

	log.Printf("🚀 Listening on %s", *addr)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
