package models

import (
	"fmt"
)

var (
	ErrAlbumNotFound = fmt.Errorf("album not found")
)

type Album struct {
	BaseModel

	Name     string
	MarkerID uint `db:"marker_id"`

	// RemoteTotalCount is the total result count the remote search last
	// reported for this album's location. Zero means "never fetched", not
	// "zero remote results". It survives a refresh that deletes every
	// cached photo so the next page can still be computed.
	RemoteTotalCount float64 `db:"remote_total_count"`
}
