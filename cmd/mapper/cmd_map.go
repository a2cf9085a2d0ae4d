package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/mapper"
	"github.com/siherrmann/mapper/core/catalog"
	"github.com/siherrmann/mapper/core/engine"
	"github.com/siherrmann/mapper/core/llm"
	"github.com/siherrmann/mapper/core/pipeline"
	"github.com/siherrmann/mapper/core/sink"
	"github.com/siherrmann/mapper/core/store"
	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
	"github.com/spf13/cobra"
)

// catalogFlags selects one catalog from a tabular file.
type catalogFlags struct {
	path    string
	sheet   string
	id      string
	columns []string
}

// mapOptions are the flags shared by map and retry.
type mapOptions struct {
	source     catalogFlags
	target     catalogFlags
	configPath string
	batchSize  int
	context    string
	template   string
	provider   string
	embedder   string
	output     string
	persist    bool
	neo4j      bool
}

var templates = map[string]pipeline.PromptTemplate{
	"default":          pipeline.DefaultPromptTemplate,
	"strategy":         pipeline.StrategyCapabilityTemplate,
	"pain-point":       pipeline.PainPointCapabilityTemplate,
	"data-application": pipeline.DataApplicationTemplate,
}

func (o *mapOptions) addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.source.path, "source", "", "Source catalog file (.csv, .xlsx)")
	flags.StringVar(&o.source.sheet, "source-sheet", "", "Sheet of the source workbook (default: first)")
	flags.StringVar(&o.source.id, "source-id", "", "Identifier column of the source catalog")
	flags.StringSliceVar(&o.source.columns, "source-columns", nil, "Text columns of the source catalog")
	flags.StringVar(&o.target.path, "target", "", "Target catalog file (.csv, .xlsx)")
	flags.StringVar(&o.target.sheet, "target-sheet", "", "Sheet of the target workbook (default: first)")
	flags.StringVar(&o.target.id, "target-id", "", "Identifier column of the target catalog")
	flags.StringSliceVar(&o.target.columns, "target-columns", nil, "Text columns of the target catalog")
	flags.StringVarP(&o.configPath, "config", "c", "", "YAML mapping config")
	flags.IntVar(&o.batchSize, "batch-size", 0, "Sources per generation call (overrides the config)")
	flags.StringVar(&o.context, "context", "", "Additional context added to every prompt")
	flags.StringVar(&o.template, "template", "default", "Prompt template: default, strategy, pain-point, data-application")
	flags.StringVar(&o.provider, "provider", "openai", "Text generation service: openai, gemini")
	flags.StringVar(&o.embedder, "embedder", "hugot", "Embedder for target shortlisting: hugot, gemini")
	flags.StringVarP(&o.output, "output", "o", "", "Export the mappings to a .csv or .xlsx file")
	flags.BoolVar(&o.persist, "db", false, "Store runs and relationships in Postgres (DB_* env)")
	flags.BoolVar(&o.neo4j, "neo4j", false, "Write the mappings to Neo4j (NEO4J_* env)")

	for _, name := range []string{"source", "source-id", "source-columns", "target", "target-id", "target-columns"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func newMapCmd() *cobra.Command {
	options := &mapOptions{}
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map every source entity onto the target catalog",
		Example: `  mapper map --source strategies.xlsx --source-id ID --source-columns Name,Description \
    --target capabilities.csv --target-id ID --target-columns Capability --template strategy -o mappings.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMapping(cmd, options, nil)
		},
	}
	options.addFlags(cmd)
	return cmd
}

func newRetryCmd() *cobra.Command {
	options := &mapOptions{}
	cmd := &cobra.Command{
		Use:   "retry [run-id]",
		Short: "Map the sources of the failed batches of a stored run again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			return runMapping(cmd, options, &runID)
		},
	}
	options.addFlags(cmd)
	return cmd
}

func runMapping(cmd *cobra.Command, options *mapOptions, retryRunID *uuid.UUID) error {
	ctx, cancel := commandContext()
	defer cancel()

	config, err := options.mappingConfig()
	if err != nil {
		return err
	}

	source, err := loadCatalog(options.source)
	if err != nil {
		return helper.NewError("load source catalog", err)
	}
	target, err := loadCatalog(options.target)
	if err != nil {
		return helper.NewError("load target catalog", err)
	}
	logger.Info("Loaded catalogs", "source", source.Name, "sources", source.Len(), "target", target.Name, "targets", target.Len())

	generate, gemini, err := options.generator(ctx)
	if err != nil {
		return err
	}
	p := pipeline.NewPipeline(generate)
	tmpl, ok := templates[options.template]
	if !ok {
		return model.NewInputError("unknown template %q", options.template)
	}
	p.SetPrompter(pipeline.NewPromptBuilder(tmpl))

	var embed pipeline.EmbedFunc
	if config.ShortlistSize > 0 && config.ShortlistSize < target.Len() {
		embed, err = options.embedFunc(gemini)
		if err != nil {
			return err
		}
	}

	resultSink, closeSink, err := options.resultSink(ctx, source.Name, target.Name)
	if err != nil {
		return err
	}
	defer closeSink()

	var result *model.MappingResult
	if options.persist || retryRunID != nil {
		result, err = mapPersisted(ctx, options, p, resultSink, embed, source, target, config, retryRunID)
	} else {
		if embed != nil {
			p.SetShortlister(pipeline.NewEmbeddingShortlister(embed))
		}
		mappingEngine := engine.NewEngine(p, store.NewMemoryStore(), resultSink, logger)
		result, err = mappingEngine.Run(ctx, source, target, config)
	}
	if result != nil {
		printSummary(cmd, result)
	}
	return err
}

func mapPersisted(ctx context.Context, options *mapOptions, p *pipeline.Pipeline, resultSink sink.Sink, embed pipeline.EmbedFunc, source *model.Catalog, target *model.Catalog, config model.MappingConfig, retryRunID *uuid.UUID) (*model.MappingResult, error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, helper.NewError("database configuration", err)
	}

	embeddingDim := pipeline.DefaultEmbeddingDim
	if options.embedder == "gemini" {
		embeddingDim = int(llm.DefaultGeminiConfig().EmbeddingDim)
	}
	m, err := mapper.NewMapper(dbConfig, embeddingDim)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	m.SetPipeline(p)
	m.SetSink(resultSink)

	if embed != nil {
		if _, err := m.IndexTargets(ctx, target, embed); err != nil {
			return nil, err
		}
		if err := m.UseVectorShortlist(target.Name, embed); err != nil {
			return nil, err
		}
	}

	if retryRunID == nil {
		return m.Map(ctx, source, target, config)
	}

	previous, err := m.PreviousResult(ctx, *retryRunID)
	if err != nil {
		return nil, err
	}
	return m.Retry(ctx, previous, source, target, config)
}

func (o *mapOptions) mappingConfig() (model.MappingConfig, error) {
	config := model.DefaultMappingConfig()
	if o.configPath != "" {
		var err error
		config, err = model.LoadMappingConfig(o.configPath)
		if err != nil {
			return config, err
		}
	}
	if o.batchSize > 0 {
		config.BatchSize = o.batchSize
	}
	if o.context != "" {
		config.ExtraContext = o.context
	}
	return config, config.Validate()
}

// generator returns the generate function of the selected provider.
// The gemini client is returned as well so it can embed.
func (o *mapOptions) generator(ctx context.Context) (pipeline.GenerateFunc, *llm.GeminiClient, error) {
	switch o.provider {
	case "openai":
		client, err := llm.NewOpenAIClient(llm.DefaultOpenAIConfig())
		if err != nil {
			return nil, nil, err
		}
		return client.Generate, nil, nil
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, llm.DefaultGeminiConfig())
		if err != nil {
			return nil, nil, err
		}
		return client.Generate, client, nil
	default:
		return nil, nil, model.NewInputError("unknown provider %q (use openai or gemini)", o.provider)
	}
}

func (o *mapOptions) embedFunc(gemini *llm.GeminiClient) (pipeline.EmbedFunc, error) {
	switch o.embedder {
	case "hugot":
		return pipeline.DefaultEmbedder()
	case "gemini":
		if gemini == nil {
			client, err := llm.NewGeminiClient(context.Background(), llm.DefaultGeminiConfig())
			if err != nil {
				return nil, err
			}
			gemini = client
		}
		return gemini.Embed, nil
	default:
		return nil, model.NewInputError("unknown embedder %q (use hugot or gemini)", o.embedder)
	}
}

// resultSink logs every event and adds the file export and Neo4j sinks when requested.
func (o *mapOptions) resultSink(ctx context.Context, sourceName string, targetName string) (sink.Sink, func(), error) {
	sinks := sink.MultiSink{sink.NewLogSink(logger)}
	closeSink := func() {}

	if o.output != "" {
		sinks = append(sinks, sink.NewFileSink(o.output))
	}
	if o.neo4j {
		neo4jSink, err := sink.NewNeo4jSink(ctx, sink.NewNeo4jConfigFromEnv(), sourceName, targetName, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, neo4jSink)
		closeSink = func() {
			if err := neo4jSink.Close(context.Background()); err != nil {
				logger.Warn("Failed to close neo4j driver", "error", err)
			}
		}
	}

	return sinks, closeSink, nil
}

func loadCatalog(flags catalogFlags) (*model.Catalog, error) {
	table, err := catalog.ReadFile(flags.path, flags.sheet)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(flags.columns))
	for _, column := range flags.columns {
		if column = strings.TrimSpace(column); column != "" {
			columns = append(columns, column)
		}
	}
	return catalog.Build(table, flags.id, columns)
}

func printSummary(cmd *cobra.Command, result *model.MappingResult) {
	summary := result.Summary()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s %s\n", result.RunID, result.State)
	fmt.Fprintf(out, "  Total mappings:   %d\n", summary.TotalMappings)
	fmt.Fprintf(out, "  Unique targets:   %d\n", summary.UniqueTargets)
	fmt.Fprintf(out, "  Mapped sources:   %d\n", summary.MappedSources)
	fmt.Fprintf(out, "  Failed batches:   %d\n", summary.FailedBatches)
	if len(result.Unmapped) > 0 {
		fmt.Fprintf(out, "  Unmapped sources: %s\n", strings.Join(result.Unmapped, ", "))
	}
}
