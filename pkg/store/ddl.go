package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conductor-telemetry/conductor/pkg/schema"
)

// sortedColumns returns schema column names in a stable order so that
// generated DDL is deterministic.
func sortedColumns(s schema.Schema) []string {
	cols := make([]string, 0, len(s))
	for col := range s {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// questCreateTableSQL builds the per-producer data table DDL for QuestDB.
// ts is the designated timestamp column:
//
//	CREATE TABLE IF NOT EXISTS "<uuid>" (ts TIMESTAMP, "a" long, ...) timestamp(ts);
func questCreateTableSQL(tableName string, s schema.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %q (ts TIMESTAMP", tableName)
	for _, col := range sortedColumns(s) {
		fmt.Fprintf(&b, ", %q %s", col, s[col].QuestType())
	}
	b.WriteString(") timestamp(ts);")
	return b.String()
}

// sqliteCreateTableSQL builds the per-producer data table DDL for the
// embedded SQLite backend.
func sqliteCreateTableSQL(tableName string, s schema.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %q (ts DATETIME NOT NULL", tableName)
	for _, col := range sortedColumns(s) {
		fmt.Fprintf(&b, ", %q %s", col, s[col].SQLiteType())
	}
	b.WriteString(");")
	return b.String()
}

// insertSQL builds an insert for one emitted row. The ts column always
// comes first; placeholder styles differ between backends ("$1" for the
// PG wire, "?" for SQLite).
func insertSQL(tableName string, columns []string, pgPlaceholders bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %q (ts", tableName)
	for _, col := range columns {
		fmt.Fprintf(&b, ", %q", col)
	}
	b.WriteString(") VALUES (")
	for i := 0; i <= len(columns); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		if pgPlaceholders {
			fmt.Fprintf(&b, "$%d", i+1)
		} else {
			b.WriteString("?")
		}
	}
	b.WriteString(");")
	return b.String()
}
