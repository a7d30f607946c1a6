package models

import (
	"fmt"
)

var (
	ErrPhotoNotFound = fmt.Errorf("photo not found")
)

type Photo struct {
	BaseModel

	Name    string
	Image   []byte
	AlbumID uint `db:"album_id"`

	// Thumbnail is a best-effort downscaled copy of Image, generated at
	// fetch time. It may be empty if the original bytes did not decode.
	Thumbnail []byte

	// RemoteTotalCount is copied from the owning album's value at fetch
	// time so the count survives a read from a stale context snapshot.
	RemoteTotalCount float64 `db:"remote_total_count"`
}
