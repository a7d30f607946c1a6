package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/adampresley/phototourist/pkg/datastore"
	"github.com/adampresley/phototourist/pkg/fetcher"
	"github.com/adampresley/phototourist/pkg/models"
	"github.com/adampresley/phototourist/pkg/paging"
)

var (
	ErrFetchInFlight = fmt.Errorf("a fetch for this album is already in flight")
)

const DefaultAlbumName = "Album 1"

type AlbumServicer interface {
	Create(markerID uint, name string) (*models.Album, error)
	Delete(albumID uint) error
	Refresh(albumID uint) error
	FetchPhotos(albumID uint) error
	GetAlbumList(markerID uint) []models.Album
	RandomPhoto(albumID uint) (*models.Photo, error)
}

type AlbumServiceConfig struct {
	Store         *datastore.DataStore
	Fetcher       fetcher.ImageFetcher
	ErrorCallback fetcher.ErrorCallback
	FetchTimeout  time.Duration
}

/*
AlbumService owns album lifecycle and the merge of fetched pages into
the cache. Creating a photo entity happens here and nowhere else.
*/
type AlbumService struct {
	store         *datastore.DataStore
	fetcher       fetcher.ImageFetcher
	errorCallback fetcher.ErrorCallback
	fetchTimeout  time.Duration

	inFlightMu sync.Mutex
	inFlight   map[uint]bool
}

func NewAlbumService(config AlbumServiceConfig) *AlbumService {
	if config.ErrorCallback == nil {
		config.ErrorCallback = func(err error, retry func()) {}
	}

	if config.FetchTimeout <= 0 {
		config.FetchTimeout = time.Minute * 2
	}

	return &AlbumService{
		store:         config.Store,
		fetcher:       config.Fetcher,
		errorCallback: config.ErrorCallback,
		fetchTimeout:  config.FetchTimeout,
		inFlight:      map[uint]bool{},
	}
}

/*
Create adds a named album under the marker and, since a brand new
album has no cached photos, triggers the initial page fetch before
returning. A fetch failure does not undo the album; it is reported
through the error callback and the album stays empty until a refresh.
*/
func (s *AlbumService) Create(markerID uint, name string) (*models.Album, error) {
	var (
		err   error
		album *models.Album
	)

	err = s.store.Write(func(ctx *datastore.Context) error {
		var writeErr error

		if album, writeErr = ctx.CreateAlbum(markerID, name); writeErr != nil {
			return writeErr
		}

		return s.store.Save(ctx)
	})

	if err != nil {
		return nil, fmt.Errorf("error creating album for marker %d: %w", markerID, err)
	}

	if fetchErr := s.FetchPhotos(album.ID); fetchErr != nil {
		slog.Error("initial fetch for new album failed", "albumID", album.ID, "error", fetchErr)
	}

	return album, nil
}

func (s *AlbumService) Delete(albumID uint) error {
	var (
		err error
	)

	err = s.store.Write(func(ctx *datastore.Context) error {
		if writeErr := ctx.DeleteAlbum(albumID); writeErr != nil {
			return writeErr
		}

		return s.store.Save(ctx)
	})

	if err != nil {
		return fmt.Errorf("error deleting album %d: %w", albumID, err)
	}

	return nil
}

/*
Refresh throws away the album's cached photos and fetches a fresh
page. The last known remote total is carried forward from the deleted
photos themselves, so the next page is still drawn from the full
remote range even though the album is momentarily empty.
*/
func (s *AlbumService) Refresh(albumID uint) error {
	if !s.beginFetch(albumID) {
		return ErrFetchInFlight
	}

	defer s.endFetch(albumID)

	err := s.store.Write(func(ctx *datastore.Context) error {
		photos := ctx.PhotosForAlbum(albumID)

		var carried float64

		for _, photo := range photos {
			if photo.RemoteTotalCount > 0 {
				carried = photo.RemoteTotalCount
			}
		}

		for _, photo := range photos {
			if writeErr := ctx.DeletePhoto(photo.ID); writeErr != nil {
				return writeErr
			}
		}

		if carried > 0 {
			if writeErr := ctx.UpdateAlbumRemoteTotal(albumID, carried); writeErr != nil {
				return writeErr
			}
		}

		return s.store.Save(ctx)
	})

	if err != nil {
		err = fmt.Errorf("error clearing album %d for refresh: %w", albumID, err)
		s.errorCallback(err, func() { _ = s.Refresh(albumID) })
		return err
	}

	return s.fetchPhotos(albumID)
}

/*
FetchPhotos fetches one page of images for the album and merges it
into the cache. Only one fetch per album may be in flight at a time.
*/
func (s *AlbumService) FetchPhotos(albumID uint) error {
	if !s.beginFetch(albumID) {
		return ErrFetchInFlight
	}

	defer s.endFetch(albumID)

	return s.fetchPhotos(albumID)
}

func (s *AlbumService) fetchPhotos(albumID uint) error {
	var (
		err    error
		album  *models.Album
		marker *models.Marker
		page   *fetcher.PageResult
	)

	reader := s.store.Reader()

	if album, err = reader.AlbumByID(albumID); err != nil {
		return err
	}

	if marker, err = reader.MarkerByID(album.MarkerID); err != nil {
		return err
	}

	nextPage := paging.NextPage(album.RemoteTotalCount)

	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	slog.Debug("fetching page for album", "albumID", albumID, "page", nextPage, "remoteTotal", album.RemoteTotalCount)

	if page, err = s.fetcher.FetchPage(ctx, marker.Latitude, marker.Longitude, nextPage); err != nil {
		// The pipeline already reported this through the error callback.
		return err
	}

	err = s.store.Write(func(writeCtx *datastore.Context) error {
		for _, item := range page.Items {
			if _, writeErr := writeCtx.CreatePhoto(albumID, item.Name, item.Image, item.Thumbnail, page.TotalCount); writeErr != nil {
				return writeErr
			}
		}

		if writeErr := writeCtx.UpdateAlbumRemoteTotal(albumID, page.TotalCount); writeErr != nil {
			return writeErr
		}

		return s.store.Save(writeCtx)
	})

	if err != nil {
		err = fmt.Errorf("error merging fetched page into album %d: %w", albumID, err)
		s.errorCallback(err, func() { _ = s.FetchPhotos(albumID) })
		return err
	}

	slog.Info("merged page into album", "albumID", albumID, "photos", len(page.Items), "remoteTotal", page.TotalCount)

	return nil
}

func (s *AlbumService) GetAlbumList(markerID uint) []models.Album {
	return s.store.Reader().AlbumsForMarker(markerID)
}

/*
RandomPhoto picks one of the album's cached photos at random, for use
as the album's representative image.
*/
func (s *AlbumService) RandomPhoto(albumID uint) (*models.Photo, error) {
	photos := s.store.Reader().PhotosForAlbum(albumID)

	if len(photos) == 0 {
		return nil, models.ErrPhotoNotFound
	}

	result := photos[rand.IntN(len(photos))]
	return &result, nil
}

func (s *AlbumService) beginFetch(albumID uint) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	if s.inFlight[albumID] {
		return false
	}

	s.inFlight[albumID] = true
	return true
}

func (s *AlbumService) endFetch(albumID uint) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	delete(s.inFlight, albumID)
}
