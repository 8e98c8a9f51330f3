package archive

import (
	"database/sql"
	"fmt"
	"strings"
)

// openSQLite opens (creating if absent) the trials table mirroring the
// CSV header, following AR-UNIT-exp/main/main.go's openDB/initSchema
// pattern: database/sql with the pure-Go modernc.org/sqlite driver.
func openSQLite(path string, header []string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("opening sqlite mirror %s: %w", path, err)}
	}
	var cols []string
	for _, h := range header {
		cols = append(cols, quoteIdent(h)+" TEXT")
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS trials (%s)", strings.Join(cols, ", "))
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, &Error{Err: fmt.Errorf("creating sqlite schema: %w", err)}
	}
	return db, nil
}

func (a *Archive) mirrorToSQLite(rec TrialRecord, row []string) error {
	placeholders := make([]string, len(a.header))
	cols := make([]string, len(a.header))
	args := make([]any, len(row))
	for i, h := range a.header {
		cols[i] = quoteIdent(h)
		placeholders[i] = "?"
		args[i] = row[i]
	}
	stmt := fmt.Sprintf("INSERT INTO trials (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := a.db.Exec(stmt, args...); err != nil {
		return &Error{Err: fmt.Errorf("mirroring trial %d to sqlite: %w", rec.TrialIndex, err)}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
