package model

import "time"

// Entity is one row of an uploaded catalog, reduced to its identifier
// and the concatenated text of the selected columns.
type Entity struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Row  int    `json:"row,omitempty"` // 1-based data row in the source table
}

// Catalog is the ordered list of entities built from one uploaded table.
// IDs are not forced to be unique; lookups resolve duplicates with the last row.
type Catalog struct {
	Name     string   `json:"name"`
	Entities []Entity `json:"entities"`
	Skipped  int      `json:"skipped,omitempty"` // rows without an id
}

// Len returns the number of entities including duplicates.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Entities)
}

// IDs returns all ids in catalog order, duplicates included.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, c.Len())
	for _, e := range c.Entities {
		ids = append(ids, e.ID)
	}
	return ids
}

// IDSet returns the set of distinct ids.
func (c *Catalog) IDSet() map[string]struct{} {
	set := make(map[string]struct{}, c.Len())
	for _, e := range c.Entities {
		set[e.ID] = struct{}{}
	}
	return set
}

// Index returns the entities keyed by id, later rows overwrite earlier ones.
func (c *Catalog) Index() map[string]Entity {
	index := make(map[string]Entity, c.Len())
	for _, e := range c.Entities {
		index[e.ID] = e
	}
	return index
}

// LastRows returns the entities with every duplicate id reduced to its last row.
// The remaining rows keep catalog order.
func (c *Catalog) LastRows() []Entity {
	last := make(map[string]int, c.Len())
	for i, e := range c.Entities {
		last[e.ID] = i
	}

	rows := make([]Entity, 0, len(last))
	for i, e := range c.Entities {
		if last[e.ID] == i {
			rows = append(rows, e)
		}
	}
	return rows
}

// DuplicateIDs returns every id that occurs more than once, in order of first occurrence.
func (c *Catalog) DuplicateIDs() []string {
	counts := make(map[string]int, c.Len())
	var order []string
	for _, e := range c.Entities {
		if counts[e.ID] == 0 {
			order = append(order, e.ID)
		}
		counts[e.ID]++
	}

	var duplicates []string
	for _, id := range order {
		if counts[id] > 1 {
			duplicates = append(duplicates, id)
		}
	}
	return duplicates
}

// Subset returns a catalog with the entities whose id is in ids, keeping catalog order.
func (c *Catalog) Subset(ids []string) *Catalog {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	subset := &Catalog{Name: c.Name}
	for _, e := range c.Entities {
		if _, ok := wanted[e.ID]; ok {
			subset.Entities = append(subset.Entities, e)
		}
	}
	return subset
}

// Table is a rectangular tabular source with named columns.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, column := range t.Columns {
		if column == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row/column, missing cells of short rows are empty.
func (t *Table) Cell(row int, column int) string {
	if row < 0 || row >= len(t.Rows) || column < 0 || column >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][column]
}

// EntityEmbedding is a target entity persisted with its embedding for similarity search.
type EntityEmbedding struct {
	ID         int64     `json:"id"`
	Catalog    string    `json:"catalog"`
	EntityID   string    `json:"entity_id"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Similarity float64   `json:"similarity,omitempty"`
}

// Entity returns the catalog entity the embedding belongs to.
func (e *EntityEmbedding) Entity() Entity {
	return Entity{ID: e.EntityID, Text: e.Text}
}
