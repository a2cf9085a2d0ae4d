package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/siherrmann/mapper/core/catalog"
	"github.com/siherrmann/mapper/core/engine"
	"github.com/siherrmann/mapper/core/llm"
	"github.com/siherrmann/mapper/core/pipeline"
	"github.com/siherrmann/mapper/core/sink"
	"github.com/siherrmann/mapper/core/store"
	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
)

func main() {
	ctx := context.Background()
	logger := helper.NewLogger(os.Stdout, slog.LevelInfo)

	// Catalogs usually come from catalog.ReadFile, here they are built inline
	strategies, err := catalog.Build(&model.Table{
		Name:    "strategies",
		Columns: []string{"ID", "Initiative", "Goal"},
		Rows: [][]string{
			{"S1", "Digital onboarding", "Open accounts fully online within ten minutes"},
			{"S2", "Cost discipline", "Reduce operating costs by consolidating vendors"},
			{"S3", "Customer insight", "Use transaction data to personalise offers"},
		},
	}, "ID", []string{"Initiative", "Goal"})
	if err != nil {
		log.Fatalf("Failed to build source catalog: %v", err)
	}

	capabilities, err := catalog.Build(&model.Table{
		Name:    "capabilities",
		Columns: []string{"ID", "Capability"},
		Rows: [][]string{
			{"C1", "Identity verification"},
			{"C2", "Procurement management"},
			{"C3", "Customer analytics"},
			{"C4", "Campaign management"},
		},
	}, "ID", []string{"Capability"})
	if err != nil {
		log.Fatalf("Failed to build target catalog: %v", err)
	}

	// OPENAI_API_KEY (and optionally OPENAI_BASE_URL, OPENAI_MODEL) select the service
	client, err := llm.NewOpenAIClient(llm.DefaultOpenAIConfig())
	if err != nil {
		log.Fatalf("Failed to create OpenAI client: %v", err)
	}

	p := pipeline.NewPipeline(client.Generate)
	p.SetPrompter(pipeline.NewPromptBuilder(pipeline.StrategyCapabilityTemplate))

	config := model.DefaultMappingConfig()
	config.BatchSize = 2
	config.ExtraContext = "A retail bank modernising its customer journeys."

	mappingEngine := engine.NewEngine(p, store.NewMemoryStore(), sink.NewLogSink(logger), logger)
	result, err := mappingEngine.Run(ctx, strategies, capabilities, config)
	if err != nil {
		log.Fatalf("Mapping failed: %v", err)
	}

	fmt.Printf("\nRun %s finished with state %s\n", result.RunID, result.State)
	for _, rel := range result.Relationships {
		fmt.Printf("  %s -> %s\n", rel.SourceID, rel.TargetID)
	}
	if len(result.Unmapped) > 0 {
		fmt.Printf("Unmapped sources: %v\n", result.Unmapped)
	}

	if err := sink.ExportFile("mappings.xlsx", result); err != nil {
		log.Fatalf("Failed to export mappings: %v", err)
	}
	fmt.Println("Exported mappings.xlsx")
}
