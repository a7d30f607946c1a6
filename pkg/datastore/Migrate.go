package datastore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/rfberaldo/sqlz"
)

//go:embed sql-migrations
var sqlMigrationsFs embed.FS

/*
MigrateDatabase runs the embedded schema scripts against the database.
Scripts whose name starts with "commit" run in filename order. Errors
a re-run would naturally produce, like adding a column that already
exists, are ignored.
*/
func MigrateDatabase(db *sqlz.DB) error {
	var (
		err  error
		dirs []fs.DirEntry
		b    []byte
	)

	if dirs, err = sqlMigrationsFs.ReadDir("sql-migrations"); err != nil {
		return fmt.Errorf("error reading migration scripts: %w", err)
	}

	for _, d := range dirs {
		if d.IsDir() {
			continue
		}

		if strings.HasPrefix(d.Name(), "commit") {
			if b, err = fs.ReadFile(sqlMigrationsFs, filepath.Join("sql-migrations", d.Name())); err != nil {
				return fmt.Errorf("error reading migration script %s: %w", d.Name(), err)
			}

			if err = runSqlScript(db, b); err != nil {
				if !isIgnorableError(err) {
					return fmt.Errorf("error running migration script %s: %w", d.Name(), err)
				}
			}
		}
	}

	return nil
}

func runSqlScript(db *sqlz.DB, script []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	_, err := db.Exec(ctx, string(script))
	return err
}

func isIgnorableError(err error) bool {
	if strings.Contains(err.Error(), "duplicate column") {
		return true
	}

	return false
}
