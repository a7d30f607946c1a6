package services

import (
	"errors"
	"testing"

	"github.com/adampresley/phototourist/pkg/models"
)

func TestMarkerCreateMakesDefaultAlbum(t *testing.T) {
	store := openTestStore(t)
	imageFetcher := newFakeFetcher(12, 12)

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	markerService := NewMarkerService(MarkerServiceConfig{
		Store:        store,
		AlbumService: albumService,
	})

	marker, err := markerService.Create(51.5, -0.12)

	if err != nil {
		t.Fatalf("creating marker: %v", err)
	}

	albums := albumService.GetAlbumList(marker.ID)

	if len(albums) != 1 {
		t.Fatalf("albums = %d, want the default album", len(albums))
	}

	if albums[0].Name != DefaultAlbumName {
		t.Fatalf("album name = %q, want %q", albums[0].Name, DefaultAlbumName)
	}

	// Placing the marker already pulled the first page for the album.
	if photos := store.Reader().PhotosForAlbum(albums[0].ID); len(photos) != 12 {
		t.Fatalf("photos in default album = %d, want 12", len(photos))
	}
}

func TestMarkerDeleteRemovesAlbumsAndPhotos(t *testing.T) {
	store := openTestStore(t)
	imageFetcher := newFakeFetcher(5, 5)

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	markerService := NewMarkerService(MarkerServiceConfig{
		Store:        store,
		AlbumService: albumService,
	})

	marker, err := markerService.Create(10, 20)

	if err != nil {
		t.Fatalf("creating marker: %v", err)
	}

	albums := albumService.GetAlbumList(marker.ID)

	if err = markerService.Delete(marker.ID); err != nil {
		t.Fatalf("deleting marker: %v", err)
	}

	if _, err = store.Reader().MarkerByID(marker.ID); !errors.Is(err, models.ErrMarkerNotFound) {
		t.Fatalf("marker resolution error = %v, want %v", err, models.ErrMarkerNotFound)
	}

	if len(albumService.GetAlbumList(marker.ID)) != 0 {
		t.Fatal("expected the marker's albums to be removed with it")
	}

	if len(store.Reader().PhotosForAlbum(albums[0].ID)) != 0 {
		t.Fatal("expected the marker's photos to be removed with it")
	}
}

func TestMarkerGetAll(t *testing.T) {
	store := openTestStore(t)
	imageFetcher := newFakeFetcher(0, 0)

	albumService := NewAlbumService(AlbumServiceConfig{
		Store:   store,
		Fetcher: imageFetcher,
	})

	markerService := NewMarkerService(MarkerServiceConfig{
		Store:        store,
		AlbumService: albumService,
	})

	if _, err := markerService.Create(10, 1); err != nil {
		t.Fatalf("creating marker: %v", err)
	}

	if _, err := markerService.Create(20, 1); err != nil {
		t.Fatalf("creating marker: %v", err)
	}

	markers := markerService.GetAll()

	if len(markers) != 2 {
		t.Fatalf("markers = %d, want 2", len(markers))
	}

	if markers[0].Latitude != 20 {
		t.Fatalf("first marker latitude = %v, want 20", markers[0].Latitude)
	}
}
