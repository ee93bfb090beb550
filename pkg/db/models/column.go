package models

import (
	"fmt"
	"strings"
)

// ColumnDef defines a single column for a table. It is the single source of
// truth for each table's schema.
type ColumnDef struct {
	// Name is the column name.
	Name string

	// Type is the ClickHouse data type (e.g., "UInt64", "String", "DateTime64(6)").
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)", "Delta, ZSTD(3)").
	// Leave empty for no codec.
	Codec string
}

// SQL returns the full column definition for CREATE TABLE statements.
// Example: "hash String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Name, c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// ColumnsToSchemaSQL renders a column list for a CREATE TABLE body.
func ColumnsToSchemaSQL(cols []ColumnDef) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, c.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}
