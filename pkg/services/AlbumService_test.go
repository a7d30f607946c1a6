package services

import (
	"errors"
	"testing"
	"time"

	"github.com/adampresley/phototourist/pkg/datastore"
	"github.com/adampresley/phototourist/pkg/models"
)

func createMarker(t *testing.T, store *datastore.DataStore, latitude, longitude float64) uint {
	t.Helper()

	var markerID uint

	err := store.Write(func(ctx *datastore.Context) error {
		markerID = ctx.CreateMarker(latitude, longitude).ID
		return store.Save(ctx)
	})

	if err != nil {
		t.Fatalf("creating marker: %v", err)
	}

	return markerID
}

func TestAlbumCreateTriggersInitialFetch(t *testing.T) {
	store := openTestStore(t)
	markerID := createMarker(t, store, 51.5, -0.12)

	imageFetcher := newFakeFetcher(25, 120)

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	album, err := albumService.Create(markerID, "holiday")

	if err != nil {
		t.Fatalf("creating album: %v", err)
	}

	// A brand new album has no remote total, so page 1 is requested.
	pages := imageFetcher.requestedPages()

	if len(pages) != 1 || pages[0] != 1 {
		t.Fatalf("requested pages = %v, want [1]", pages)
	}

	photos := store.Reader().PhotosForAlbum(album.ID)

	if len(photos) != 25 {
		t.Fatalf("photos = %d, want 25", len(photos))
	}

	for _, photo := range photos {
		if photo.RemoteTotalCount != 120 {
			t.Fatalf("photo remote total = %v, want 120", photo.RemoteTotalCount)
		}
	}

	stored, err := store.Reader().AlbumByID(album.ID)

	if err != nil {
		t.Fatalf("resolving album: %v", err)
	}

	if stored.RemoteTotalCount != 120 {
		t.Fatalf("album remote total = %v, want 120", stored.RemoteTotalCount)
	}
}

func TestAlbumSurvivesFailedInitialFetch(t *testing.T) {
	store := openTestStore(t)
	markerID := createMarker(t, store, 0, 0)

	imageFetcher := newFakeFetcher(0, 0)
	imageFetcher.err = errors.New("remote service is down")

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	album, err := albumService.Create(markerID, "holiday")

	if err != nil {
		t.Fatalf("creating album: %v", err)
	}

	if len(store.Reader().PhotosForAlbum(album.ID)) != 0 {
		t.Fatal("expected an empty album after a failed fetch")
	}

	if _, err = store.Reader().AlbumByID(album.ID); err != nil {
		t.Fatalf("expected the album to survive the failed fetch, got %v", err)
	}
}

func TestRefreshReplacesPhotosWithinTheRemoteRange(t *testing.T) {
	store := openTestStore(t)
	markerID := createMarker(t, store, 51.5, -0.12)

	imageFetcher := newFakeFetcher(25, 120)

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	album, err := albumService.Create(markerID, "holiday")

	if err != nil {
		t.Fatalf("creating album: %v", err)
	}

	before := store.Reader().PhotosForAlbum(album.ID)

	if err = albumService.Refresh(album.ID); err != nil {
		t.Fatalf("refreshing album: %v", err)
	}

	after := store.Reader().PhotosForAlbum(album.ID)

	if len(after) != 25 {
		t.Fatalf("photos after refresh = %d, want 25", len(after))
	}

	// The refreshed page is a fresh set of entities.
	beforeIDs := map[uint]bool{}

	for _, photo := range before {
		beforeIDs[photo.ID] = true
	}

	for _, photo := range after {
		if beforeIDs[photo.ID] {
			t.Fatalf("photo %d survived the refresh", photo.ID)
		}
	}

	// With 120 remote photos the refresh draws from pages 0 through 4.
	pages := imageFetcher.requestedPages()

	if len(pages) != 2 {
		t.Fatalf("requested pages = %v, want 2 requests", pages)
	}

	if pages[1] < 0 || pages[1] >= 5 {
		t.Fatalf("refresh page = %d, want within [0, 5)", pages[1])
	}
}

func TestRefreshCarriesTotalForwardFromDeletedPhotos(t *testing.T) {
	store := openTestStore(t)
	markerID := createMarker(t, store, 0, 0)

	var albumID uint

	// An album whose own total was never recorded, but whose photos
	// remember the remote total from the fetch that produced them.
	err := store.Write(func(ctx *datastore.Context) error {
		album, writeErr := ctx.CreateAlbum(markerID, "stale")

		if writeErr != nil {
			return writeErr
		}

		albumID = album.ID

		for _, name := range []string{"one", "two"} {
			if _, writeErr = ctx.CreatePhoto(albumID, name, []byte(name), nil, 120); writeErr != nil {
				return writeErr
			}
		}

		return store.Save(ctx)
	})

	if err != nil {
		t.Fatalf("seeding album: %v", err)
	}

	imageFetcher := newFakeFetcher(25, 120)
	imageFetcher.block = true

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	refreshDone := make(chan error, 1)

	go func() {
		refreshDone <- albumService.Refresh(albumID)
	}()

	select {
	case <-imageFetcher.started:
	case <-time.After(time.Second * 5):
		t.Fatal("refresh never reached the fetch")
	}

	// The clearing commit has landed: the photos are gone and their
	// remembered total now lives on the album.
	album, err := store.Reader().AlbumByID(albumID)

	if err != nil {
		t.Fatalf("resolving album mid-refresh: %v", err)
	}

	if album.RemoteTotalCount != 120 {
		t.Fatalf("carried total = %v, want 120", album.RemoteTotalCount)
	}

	if len(store.Reader().PhotosForAlbum(albumID)) != 0 {
		t.Fatal("expected the cached photos to be cleared before the fetch")
	}

	close(imageFetcher.release)

	if err = <-refreshDone; err != nil {
		t.Fatalf("refreshing album: %v", err)
	}

	pages := imageFetcher.requestedPages()

	if len(pages) != 1 || pages[0] < 0 || pages[0] >= 5 {
		t.Fatalf("requested pages = %v, want one page within [0, 5)", pages)
	}
}

func TestOverlappingFetchIsRejected(t *testing.T) {
	store := openTestStore(t)
	markerID := createMarker(t, store, 0, 0)

	var albumID uint

	err := store.Write(func(ctx *datastore.Context) error {
		album, writeErr := ctx.CreateAlbum(markerID, "busy")

		if writeErr != nil {
			return writeErr
		}

		albumID = album.ID
		return store.Save(ctx)
	})

	if err != nil {
		t.Fatalf("seeding album: %v", err)
	}

	imageFetcher := newFakeFetcher(3, 3)
	imageFetcher.block = true

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	firstDone := make(chan error, 1)

	go func() {
		firstDone <- albumService.FetchPhotos(albumID)
	}()

	select {
	case <-imageFetcher.started:
	case <-time.After(time.Second * 5):
		t.Fatal("first fetch never started")
	}

	if err = albumService.FetchPhotos(albumID); !errors.Is(err, ErrFetchInFlight) {
		t.Fatalf("second fetch error = %v, want %v", err, ErrFetchInFlight)
	}

	if err = albumService.Refresh(albumID); !errors.Is(err, ErrFetchInFlight) {
		t.Fatalf("overlapping refresh error = %v, want %v", err, ErrFetchInFlight)
	}

	close(imageFetcher.release)

	if err = <-firstDone; err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	if len(store.Reader().PhotosForAlbum(albumID)) != 3 {
		t.Fatal("expected the first fetch to land its page")
	}
}

func TestRandomPhoto(t *testing.T) {
	store := openTestStore(t)
	markerID := createMarker(t, store, 0, 0)

	imageFetcher := newFakeFetcher(5, 5)

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	album, err := albumService.Create(markerID, "holiday")

	if err != nil {
		t.Fatalf("creating album: %v", err)
	}

	photo, err := albumService.RandomPhoto(album.ID)

	if err != nil {
		t.Fatalf("random photo: %v", err)
	}

	if len(photo.Image) == 0 {
		t.Fatal("expected the random photo to carry its image bytes")
	}

	if _, err = albumService.RandomPhoto(9999); !errors.Is(err, models.ErrPhotoNotFound) {
		t.Fatalf("empty album error = %v, want %v", err, models.ErrPhotoNotFound)
	}
}

func TestAlbumDeleteRemovesPhotos(t *testing.T) {
	store := openTestStore(t)
	markerID := createMarker(t, store, 0, 0)

	imageFetcher := newFakeFetcher(4, 4)

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	album, err := albumService.Create(markerID, "holiday")

	if err != nil {
		t.Fatalf("creating album: %v", err)
	}

	if err = albumService.Delete(album.ID); err != nil {
		t.Fatalf("deleting album: %v", err)
	}

	if _, err = store.Reader().AlbumByID(album.ID); !errors.Is(err, models.ErrAlbumNotFound) {
		t.Fatalf("album resolution error = %v, want %v", err, models.ErrAlbumNotFound)
	}

	if len(store.Reader().PhotosForAlbum(album.ID)) != 0 {
		t.Fatal("expected the album's photos to be removed with it")
	}
}
