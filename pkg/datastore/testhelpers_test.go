package datastore

import (
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/glebarez/sqlite"
	"github.com/rfberaldo/sqlz"
)

var registerBindsOnce sync.Once

func openTestDB(t *testing.T) *sqlz.DB {
	t.Helper()

	registerBindsOnce.Do(func() {
		sqlz.Register("sqlite", sqlz.BindQuestion)
	})

	db, err := sqlz.Connect("sqlite", "file:"+filepath.Join(t.TempDir(), "test.db"))

	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}

	if err = MigrateDatabase(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return db
}

func openTestStore(t *testing.T) (*sqlz.DB, *DataStore) {
	t.Helper()

	db := openTestDB(t)

	store, err := NewDataStore(DataStoreConfig{DB: db})

	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}

	t.Cleanup(store.Close)

	return db, store
}

/*
mustWrite runs a mutation and save against the writer context,
failing the test on any error.
*/
func mustWrite(t *testing.T, store *DataStore, fn func(ctx *Context) error) {
	t.Helper()

	err := store.Write(func(ctx *Context) error {
		if err := fn(ctx); err != nil {
			return err
		}

		return store.Save(ctx)
	})

	if err != nil {
		t.Fatalf("write: %v", err)
	}
}
