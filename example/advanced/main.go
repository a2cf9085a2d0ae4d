package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/mapper"
	"github.com/siherrmann/mapper/core/catalog"
	"github.com/siherrmann/mapper/core/llm"
	"github.com/siherrmann/mapper/core/pipeline"
	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
)

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	m, err := mapper.NewMapper(dbConfig, pipeline.DefaultEmbeddingDim)
	if err != nil {
		log.Fatalf("Failed to create mapper: %v", err)
	}
	defer m.Close()

	painPoints, err := catalog.Build(&model.Table{
		Name:    "pain_points",
		Columns: []string{"ID", "Pain point"},
		Rows: [][]string{
			{"P1", "Invoices are matched to purchase orders by hand"},
			{"P2", "Nobody knows which customers are about to churn"},
			{"P3", "Onboarding requires a branch visit"},
		},
	}, "ID", []string{"Pain point"})
	if err != nil {
		log.Fatalf("Failed to build source catalog: %v", err)
	}

	capabilities, err := catalog.Build(&model.Table{
		Name:    "capabilities",
		Columns: []string{"ID", "Capability"},
		Rows: [][]string{
			{"C1", "Accounts payable automation"},
			{"C2", "Churn prediction"},
			{"C3", "Remote identity verification"},
			{"C4", "Branch network planning"},
			{"C5", "Treasury management"},
			{"C6", "Customer segmentation"},
		},
	}, "ID", []string{"Capability"})
	if err != nil {
		log.Fatalf("Failed to build target catalog: %v", err)
	}

	if err := m.UseOpenAI(llm.DefaultOpenAIConfig()); err != nil {
		log.Fatalf("Failed to set up generator: %v", err)
	}
	if err := m.UsePromptTemplate(pipeline.PainPointCapabilityTemplate); err != nil {
		log.Fatalf("Failed to set prompt template: %v", err)
	}

	// Only the three closest capabilities per batch are sent to the service
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	if _, err := m.IndexTargets(ctx, capabilities, embedder); err != nil {
		log.Fatalf("Failed to index capabilities: %v", err)
	}
	if err := m.UseVectorShortlist(capabilities.Name, embedder); err != nil {
		log.Fatalf("Failed to set shortlister: %v", err)
	}

	config := model.DefaultMappingConfig()
	config.BatchSize = 2
	config.ShortlistSize = 3
	config.Concurrency = 2
	config.Retry.MaxAttempts = 3
	config.Retry.SplitOnFailure = true

	result, err := m.Map(ctx, painPoints, capabilities, config)
	if err != nil {
		log.Fatalf("Mapping failed: %v", err)
	}

	if len(result.Unmapped) > 0 {
		fmt.Printf("Retrying %d unmapped sources\n", len(result.Unmapped))
		result, err = m.Retry(ctx, result, painPoints, capabilities, config)
		if err != nil {
			log.Fatalf("Retry failed: %v", err)
		}
	}

	summary := result.Summary()
	fmt.Printf("\nMapped %d sources onto %d capabilities with %d relationships\n",
		summary.MappedSources, summary.UniqueTargets, summary.TotalMappings)

	stored, err := m.Mappings(ctx, painPoints.Name, capabilities.Name)
	if err != nil {
		log.Fatalf("Failed to read mappings: %v", err)
	}
	for _, rel := range stored {
		fmt.Printf("  %s -> %s (run %s)\n", rel.SourceID, rel.TargetID, rel.RunID)
	}

	runs, err := m.RunHistory(ctx, 5)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	for _, run := range runs {
		fmt.Printf("Run %s: %s, %d batches, %d failed\n", run.RID, run.State, run.TotalBatches, run.FailedBatches)
	}
}
