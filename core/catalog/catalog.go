package catalog

import (
	"strings"

	"github.com/siherrmann/mapper/model"
)

// Build turns a table into a catalog. The id column and every text column must
// exist. Rows with an empty id are skipped and counted, duplicates are kept.
// The entity text is the non-empty text cells in column order joined by a space.
func Build(table *model.Table, idColumn string, textColumns []string) (*model.Catalog, error) {
	if table == nil {
		return nil, model.NewInputError("no table given")
	}

	idIndex := table.ColumnIndex(idColumn)
	if idIndex < 0 {
		return nil, model.NewInputError("id column %q not found in %q", idColumn, table.Name)
	}

	textIndexes := make([]int, 0, len(textColumns))
	for _, column := range textColumns {
		index := table.ColumnIndex(column)
		if index < 0 {
			return nil, model.NewInputError("text column %q not found in %q", column, table.Name)
		}
		textIndexes = append(textIndexes, index)
	}

	catalog := &model.Catalog{
		Name:     table.Name,
		Entities: make([]model.Entity, 0, len(table.Rows)),
	}
	for row := range table.Rows {
		id := strings.TrimSpace(table.Cell(row, idIndex))
		if id == "" {
			catalog.Skipped++
			continue
		}

		parts := make([]string, 0, len(textIndexes))
		for _, index := range textIndexes {
			if value := strings.TrimSpace(table.Cell(row, index)); value != "" {
				parts = append(parts, value)
			}
		}

		catalog.Entities = append(catalog.Entities, model.Entity{
			ID:   id,
			Text: strings.Join(parts, " "),
			Row:  row + 1,
		})
	}

	return catalog, nil
}

// ApplyDuplicatePolicy checks a catalog against the configured policy.
// An empty catalog is always an input error.
func ApplyDuplicatePolicy(catalog *model.Catalog, policy model.DuplicatePolicy) error {
	if catalog.Len() == 0 {
		name := ""
		if catalog != nil {
			name = catalog.Name
		}
		return model.NewInputError("catalog %q is empty", name)
	}

	switch policy {
	case model.DuplicatePolicyReject:
		if duplicates := catalog.DuplicateIDs(); len(duplicates) > 0 {
			return model.NewInputError("catalog %q contains duplicate ids: %s", catalog.Name, strings.Join(duplicates, ", "))
		}
	case model.DuplicatePolicyLastWins, "":
	default:
		return model.NewInputError("unknown duplicate policy %q", policy)
	}

	return nil
}
