package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/glintdata/recon-engine/pkg/adapters/datasource"
	_ "github.com/glintdata/recon-engine/pkg/adapters/datasource/mssql"
	_ "github.com/glintdata/recon-engine/pkg/adapters/datasource/postgres"
	"github.com/glintdata/recon-engine/pkg/config"
	"github.com/glintdata/recon-engine/pkg/engine"
	"github.com/glintdata/recon-engine/pkg/kg"
	"github.com/glintdata/recon-engine/pkg/llm"
	"github.com/glintdata/recon-engine/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	graphName := flag.String("graph", "", "knowledge graph name (required)")
	seedPath := flag.String("seed", "", "path to a YAML seed file with aliases and relationships")
	schemas := flag.String("schemas", "", "comma-separated schema names to scope discovery")
	defsPath := flag.String("definitions", "", "path to a file with one reconciliation definition per line")
	dialect := flag.String("dialect", "", "SQL dialect override (sqlserver, mysql, postgres, oracle)")
	useLLM := flag.Bool("use-llm", false, "augment rule-based classification with the configured LLM")
	noDiscovery := flag.Bool("no-discovery", false, "build the graph from the seed file only, skipping schema discovery")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	definitions := flag.Args()
	if *defsPath != "" {
		fromFile, err := readDefinitions(*defsPath)
		if err != nil {
			log.Fatalf("Failed to read definitions: %v", err)
		}
		definitions = append(definitions, fromFile...)
	}
	if len(definitions) == 0 {
		log.Fatal("No definitions given; pass them as arguments or via -definitions")
	}

	ctx := context.Background()

	extractor, err := llm.NewExtractor(cfg.LLM.Provider, &llm.Config{
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to configure LLM extraction: %v", err)
	}

	adapter, err := datasource.Open(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to open datasource: %v", err)
	}
	defer func() { _ = adapter.Close() }()

	var seed *kg.Seed
	if *seedPath != "" {
		seed, err = kg.LoadSeed(*seedPath)
		if err != nil {
			log.Fatalf("Failed to load seed: %v", err)
		}
	}

	graph := kg.New(*graphName)
	graph.SetMatchFloor(cfg.Matching.MinConfidence)

	var schemaSource kg.SchemaSource = adapter
	if *noDiscovery {
		schemaSource = nil
	}
	if err := kg.NewIngestor(logger).Ingest(ctx, graph, schemaSource, splitSchemas(*schemas), seed); err != nil {
		log.Fatalf("Failed to ingest knowledge graph: %v", err)
	}

	eng := engine.New(cfg, extractor, adapter, logger)
	if err := eng.RegisterGraph(graph); err != nil {
		log.Fatalf("Invalid graph name: %v", err)
	}

	batch, err := eng.Run(ctx, &engine.ReconciliationRequest{
		GraphName:   *graphName,
		Definitions: definitions,
		UseLLM:      *useLLM,
		Dialect:     *dialect,
	})
	if err != nil {
		log.Fatalf("Reconciliation failed: %v", err)
	}

	out, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode results: %v", err)
	}
	fmt.Println(string(out))
}

func readDefinitions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var defs []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		defs = append(defs, line)
	}
	return defs, nil
}

func splitSchemas(csv string) []string {
	if csv == "" {
		return nil
	}

	var schemas []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			schemas = append(schemas, s)
		}
	}
	return schemas
}
