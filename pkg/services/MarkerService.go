package services

import (
	"fmt"

	"github.com/adampresley/phototourist/pkg/datastore"
	"github.com/adampresley/phototourist/pkg/models"
)

type MarkerServicer interface {
	Create(latitude, longitude float64) (*models.Marker, error)
	Delete(markerID uint) error
	GetAll() []models.Marker
}

type MarkerServiceConfig struct {
	Store        *datastore.DataStore
	AlbumService AlbumServicer
}

/*
MarkerService owns marker lifecycle. Placing a marker also creates
its default album, which in turn kicks off the album's initial photo
fetch.
*/
type MarkerService struct {
	store        *datastore.DataStore
	albumService AlbumServicer
}

func NewMarkerService(config MarkerServiceConfig) MarkerService {
	return MarkerService{
		store:        config.Store,
		albumService: config.AlbumService,
	}
}

func (s MarkerService) Create(latitude, longitude float64) (*models.Marker, error) {
	var (
		err    error
		marker *models.Marker
	)

	err = s.store.Write(func(ctx *datastore.Context) error {
		marker = ctx.CreateMarker(latitude, longitude)
		return s.store.Save(ctx)
	})

	if err != nil {
		return nil, fmt.Errorf("error creating marker at (%f, %f): %w", latitude, longitude, err)
	}

	if _, err = s.albumService.Create(marker.ID, DefaultAlbumName); err != nil {
		return nil, fmt.Errorf("error creating default album for marker %d: %w", marker.ID, err)
	}

	return marker, nil
}

/*
Delete removes the marker, its albums, and their photos.
*/
func (s MarkerService) Delete(markerID uint) error {
	var (
		err error
	)

	err = s.store.Write(func(ctx *datastore.Context) error {
		if writeErr := ctx.DeleteMarker(markerID); writeErr != nil {
			return writeErr
		}

		return s.store.Save(ctx)
	})

	if err != nil {
		return fmt.Errorf("error deleting marker %d: %w", markerID, err)
	}

	return nil
}

func (s MarkerService) GetAll() []models.Marker {
	return s.store.Reader().Markers()
}
