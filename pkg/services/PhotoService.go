package services

import (
	"fmt"

	"github.com/adampresley/phototourist/pkg/datastore"
	"github.com/adampresley/phototourist/pkg/models"
)

type PhotoServicer interface {
	Delete(photoID uint) error
	GetPhotoList(albumID uint) []models.Photo
}

type PhotoServiceConfig struct {
	Store *datastore.DataStore
}

type PhotoService struct {
	store *datastore.DataStore
}

func NewPhotoService(config PhotoServiceConfig) PhotoService {
	return PhotoService{
		store: config.Store,
	}
}

func (s PhotoService) Delete(photoID uint) error {
	var (
		err error
	)

	err = s.store.Write(func(ctx *datastore.Context) error {
		if writeErr := ctx.DeletePhoto(photoID); writeErr != nil {
			return writeErr
		}

		return s.store.Save(ctx)
	})

	if err != nil {
		return fmt.Errorf("error deleting photo %d: %w", photoID, err)
	}

	return nil
}

func (s PhotoService) GetPhotoList(albumID uint) []models.Photo {
	return s.store.Reader().PhotosForAlbum(albumID)
}
