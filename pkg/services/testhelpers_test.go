package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/adampresley/phototourist/pkg/datastore"
	"github.com/adampresley/phototourist/pkg/fetcher"
	_ "github.com/glebarez/sqlite"
	"github.com/rfberaldo/sqlz"
)

var registerBindsOnce sync.Once

func openTestStore(t *testing.T) *datastore.DataStore {
	t.Helper()

	registerBindsOnce.Do(func() {
		sqlz.Register("sqlite", sqlz.BindQuestion)
	})

	db, err := sqlz.Connect("sqlite", "file:"+filepath.Join(t.TempDir(), "test.db"))

	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}

	if err = datastore.MigrateDatabase(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	store, err := datastore.NewDataStore(datastore.DataStoreConfig{DB: db})

	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}

	t.Cleanup(store.Close)

	return store
}

/*
fakeFetcher serves a fixed-size page per call and records the pages it
was asked for. Setting block makes FetchPage wait until release is
closed, which lets tests hold a fetch in flight.
*/
type fakeFetcher struct {
	itemCount int
	total     float64
	err       error

	block   bool
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	pages []int
}

func newFakeFetcher(itemCount int, total float64) *fakeFetcher {
	return &fakeFetcher{
		itemCount: itemCount,
		total:     total,
		started:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, latitude, longitude float64, page int) (*fetcher.PageResult, error) {
	f.mu.Lock()
	f.pages = append(f.pages, page)
	f.mu.Unlock()

	if f.block {
		select {
		case f.started <- struct{}{}:
		default:
		}

		<-f.release
	}

	if f.err != nil {
		return nil, f.err
	}

	items := make([]fetcher.ImageData, 0, f.itemCount)

	for i := 0; i < f.itemCount; i++ {
		items = append(items, fetcher.ImageData{
			Name:  fmt.Sprintf("photo %d", i),
			Image: []byte{byte(i)},
		})
	}

	return &fetcher.PageResult{Items: items, TotalCount: f.total}, nil
}

func (f *fakeFetcher) requestedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]int(nil), f.pages...)
}
