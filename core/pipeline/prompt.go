package pipeline

import (
	"fmt"
	"strings"

	"github.com/siherrmann/mapper/model"
)

// PromptTemplate holds the wording of a mapping prompt.
// The reply grammar section is always appended by the builder.
type PromptTemplate struct {
	Role         string
	Task         string
	SourceLabel  string
	TargetLabel  string
	Instructions []string
	// ExampleSourceIDs and ExampleTargetIDs are used to render the worked example.
	ExampleSourceIDs []string
	ExampleTargetIDs []string
	AskRationale     bool
}

// DefaultPromptTemplate is a generic source to target mapping prompt.
var DefaultPromptTemplate = PromptTemplate{
	Role:        "You are an expert enterprise architect mapping related items between two catalogues.",
	Task:        "Match each source item to the target items it relates to.",
	SourceLabel: "Source Items",
	TargetLabel: "Target Items",
	Instructions: []string{
		"For each source item, decide which target items are related to it",
		"A source item can map to 0, 1, or many target items - choose all that apply",
	},
	ExampleSourceIDs: []string{"SRC001", "SRC002", "SRC003"},
	ExampleTargetIDs: []string{"TGT003", "TGT007", "TGT012"},
}

// StrategyCapabilityTemplate maps strategic initiatives to capabilities.
var StrategyCapabilityTemplate = PromptTemplate{
	Role:        "You are an expert strategy consultant specialising in organisational capabilities and strategic implementation.",
	Task:        "Match each strategic initiative to the capabilities required to implement it.",
	SourceLabel: "Strategic Initiatives to Match",
	TargetLabel: "Available Capabilities",
	Instructions: []string{
		"For each strategic initiative, analyse and determine which capabilities are required for successful implementation",
		"Consider both enablement capabilities (that make the strategy possible) and execution capabilities (that deliver the strategy)",
		"A strategy can map to 0, 1, or many capabilities - choose all that are necessary",
	},
	ExampleSourceIDs: []string{"STRAT001", "STRAT002", "STRAT003"},
	ExampleTargetIDs: []string{"CAP003", "CAP007", "CAP012"},
}

// PainPointCapabilityTemplate maps pain points to capabilities.
var PainPointCapabilityTemplate = PromptTemplate{
	Role:        "You are an expert business analyst specialising in capability based planning.",
	Task:        "Match each pain point to the capabilities that would address it.",
	SourceLabel: "Pain Points to Match",
	TargetLabel: "Available Capabilities",
	Instructions: []string{
		"For each pain point, identify the capabilities whose improvement would resolve or reduce it",
		"A pain point can map to 0, 1, or many capabilities - choose all that are relevant",
	},
	ExampleSourceIDs: []string{"PP001", "PP002", "PP003"},
	ExampleTargetIDs: []string{"CAP003", "CAP007", "CAP012"},
}

// DataApplicationTemplate maps applications to data entities and asks for a rationale.
var DataApplicationTemplate = PromptTemplate{
	Role:        "You are a solution architect evaluating how applications fit into an organisation's enterprise data model.",
	Task:        "Identify all data entities that are meaningfully connected to each application based on how it is used in real business operations.",
	SourceLabel: "Applications",
	TargetLabel: "Data Entity Catalogue",
	Instructions: []string{
		"Include any data entities the application helps create, view, manage, use, or exchange",
		"Base your reasoning on common enterprise usage patterns, integrations, and practical business processes",
		"If a data entity is not relevant, omit it",
	},
	ExampleSourceIDs: []string{"APP001", "APP002", "APP003"},
	ExampleTargetIDs: []string{"DE014", "DE020", "DE033"},
	AskRationale:     true,
}

// NewPromptBuilder returns a PromptFunc rendering the given template.
func NewPromptBuilder(tmpl PromptTemplate) PromptFunc {
	return func(batch model.Batch, targets []model.Entity, extraContext string) string {
		var b strings.Builder

		b.WriteString(tmpl.Role)
		b.WriteString("\n\nYour task: ")
		b.WriteString(tmpl.Task)
		b.WriteString("\n\n")

		writeEntities(&b, tmpl.SourceLabel, batch.Entities)
		writeEntities(&b, tmpl.TargetLabel, targets)

		b.WriteString("Additional Context: ")
		b.WriteString(strings.TrimSpace(extraContext))
		b.WriteString("\n\nInstructions:\n")

		n := 1
		for _, instruction := range tmpl.Instructions {
			fmt.Fprintf(&b, "%d. %s\n", n, instruction)
			n++
		}
		fmt.Fprintf(&b, "%d. Use only the exact IDs from the lists above\n", n)
		n++
		if tmpl.AskRationale {
			fmt.Fprintf(&b, "%d. After the target IDs add \" | \" and one sentence explaining the mapping\n", n)
		} else {
			fmt.Fprintf(&b, "%d. Only return the source ID and target IDs - no additional text\n", n)
		}
		n++
		fmt.Fprintf(&b, "%d. Return one line per source item in this exact format:\n", n)
		b.WriteString("- For items with no related targets: SOURCE_ID -> NONE\n")
		b.WriteString("- For items with one target: SOURCE_ID -> TARGET_ID\n")
		b.WriteString("- For items with multiple targets: SOURCE_ID -> TARGET_ID1, TARGET_ID2\n\n")

		b.WriteString("Example format:\n")
		b.WriteString(exampleLines(tmpl))
		b.WriteString("\nMappings:")

		return b.String()
	}
}

func writeEntities(b *strings.Builder, label string, entities []model.Entity) {
	b.WriteString(label)
	b.WriteString(":\n")
	for _, e := range entities {
		fmt.Fprintf(b, "- %s: %s\n", e.ID, e.Text)
	}
	b.WriteString("\n")
}

func exampleLines(tmpl PromptTemplate) string {
	sources := tmpl.ExampleSourceIDs
	targets := tmpl.ExampleTargetIDs
	if len(sources) < 3 || len(targets) < 3 {
		sources = DefaultPromptTemplate.ExampleSourceIDs
		targets = DefaultPromptTemplate.ExampleTargetIDs
	}

	candidates := []model.Candidate{
		{SourceID: sources[0], TargetIDs: []string{targets[0], targets[1]}},
		{SourceID: sources[1], TargetIDs: []string{targets[2]}},
		{SourceID: sources[2]},
	}
	if tmpl.AskRationale {
		candidates[0].Rationale = "both targets support the first item directly"
		candidates[1].Rationale = "the second item depends on this target"
	}

	return FormatCandidates(candidates)
}
