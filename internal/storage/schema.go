package storage

// ColumnType is a portable column type; each backend maps it to its own DDL.
type ColumnType string

const (
	// TypeKey is short text that takes part in a unique constraint or index.
	TypeKey ColumnType = "key"
	// TypeText is unbounded text.
	TypeText ColumnType = "text"
	// TypeInt is a 64-bit integer.
	TypeInt ColumnType = "int"
)

// ColumnSpec is one NOT NULL column.
type ColumnSpec struct {
	Name string
	Type ColumnType
}

// TableSpec describes one index table.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	// Unique is the natural key; inserts dedupe on it.
	Unique []string
	// Lookup, if set, gets a secondary index for FindByEntity.
	Lookup []string
}

// ColumnNames returns the column names in declaration order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Table names.
const (
	FilesTable        = "bids_files"
	EntitiesTable     = "bids_entities"
	ColumnValuesTable = "bids_column_values"
)

var (
	// FilesSpec holds one row per indexed file.
	FilesSpec = TableSpec{
		Name: FilesTable,
		Columns: []ColumnSpec{
			{Name: "dataset", Type: TypeKey},
			{Name: "file_key", Type: TypeKey},
			{Name: "path", Type: TypeText},
			{Name: "suffix", Type: TypeKey},
		},
		Unique: []string{"dataset", "file_key"},
	}

	// EntitiesSpec holds every entity pair of every indexed file, including
	// entities outside the key tuple.
	EntitiesSpec = TableSpec{
		Name: EntitiesTable,
		Columns: []ColumnSpec{
			{Name: "dataset", Type: TypeKey},
			{Name: "file_key", Type: TypeKey},
			{Name: "entity", Type: TypeKey},
			{Name: "value", Type: TypeKey},
		},
		Unique: []string{"dataset", "file_key", "entity"},
		Lookup: []string{"dataset", "entity", "value"},
	}

	// ColumnValuesSpec holds the column summary: one row per categorical
	// value, and one row with an empty value per continuous column.
	ColumnValuesSpec = TableSpec{
		Name: ColumnValuesTable,
		Columns: []ColumnSpec{
			{Name: "dataset", Type: TypeKey},
			{Name: "column_name", Type: TypeKey},
			{Name: "kind", Type: TypeKey},
			{Name: "value", Type: TypeKey},
			{Name: "total_count", Type: TypeInt},
			{Name: "file_count", Type: TypeInt},
		},
		Unique: []string{"dataset", "column_name", "value"},
	}
)

// Tables returns every index table in creation order.
func Tables() []TableSpec {
	return []TableSpec{FilesSpec, EntitiesSpec, ColumnValuesSpec}
}
