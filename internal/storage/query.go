package storage

import (
	"fmt"
	"strings"
)

// Dialect is the identifier quoting and placeholder style of a backend.
// Statements that do not differ beyond those two are built here once.
type Dialect struct {
	// Quote quotes one identifier.
	Quote func(string) string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

// DeleteDatasetSQL removes every row of dataset from table.
func (d Dialect) DeleteDatasetSQL(table string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.Quote(table), d.Quote("dataset"), d.Placeholder(1))
}

// FindFilesSQL selects (file_key, path, suffix) of files whose entity
// matches. Parameters: dataset, entity, value.
func (d Dialect) FindFilesSQL() string {
	q := d.Quote
	return fmt.Sprintf(
		"SELECT f.%[1]s, f.%[2]s, f.%[3]s FROM %[4]s f JOIN %[5]s e ON e.%[6]s = f.%[6]s AND e.%[1]s = f.%[1]s "+
			"WHERE f.%[6]s = %[9]s AND e.%[7]s = %[10]s AND e.%[8]s = %[11]s ORDER BY f.%[1]s",
		q("file_key"), q("path"), q("suffix"), q(FilesTable), q(EntitiesTable),
		q("dataset"), q("entity"), q("value"),
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3),
	)
}

// FindEntitiesSQL selects (file_key, entity, value) of every entity of the
// files FindFilesSQL matches. Parameters: dataset, entity, value.
func (d Dialect) FindEntitiesSQL() string {
	q := d.Quote
	return fmt.Sprintf(
		"SELECT a.%[1]s, a.%[2]s, a.%[3]s FROM %[4]s a JOIN %[4]s e ON e.%[5]s = a.%[5]s AND e.%[1]s = a.%[1]s "+
			"WHERE a.%[5]s = %[6]s AND e.%[2]s = %[7]s AND e.%[3]s = %[8]s ORDER BY a.%[1]s, a.%[2]s",
		q("file_key"), q("entity"), q("value"), q(EntitiesTable), q("dataset"),
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3),
	)
}

// ColumnValuesSQL selects summary rows. With a column filter the parameters
// are dataset, column; otherwise just dataset.
func (d Dialect) ColumnValuesSQL(filterColumn bool) string {
	q := d.Quote
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, %s, %s, %s, %s FROM %s WHERE %s = %s",
		q("column_name"), q("kind"), q("value"), q("total_count"), q("file_count"),
		q(ColumnValuesTable), q("dataset"), d.Placeholder(1))
	if filterColumn {
		fmt.Fprintf(&b, " AND %s = %s", q("column_name"), d.Placeholder(2))
	}
	fmt.Fprintf(&b, " ORDER BY %s, %s", q("column_name"), q("value"))
	return b.String()
}

// ColumnValueArgs returns the bind parameters for ColumnValuesSQL.
func ColumnValueArgs(dataset, column string) (bool, []any) {
	if column == "" {
		return false, []any{dataset}
	}
	return true, []any{dataset, column}
}

// QuoteDouble quotes an ANSI identifier ("name").
func QuoteDouble(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
