package datastore

import (
	"sort"
	"time"

	"github.com/adampresley/phototourist/pkg/models"
)

/*
MergePolicy controls how a context resolves a field that both contexts
have modified since the last merge.
*/
type MergePolicy int

const (
	// MergeWriterWins is the background context's policy. A committed
	// writer change always replaces the other context's unsaved edit.
	MergeWriterWins MergePolicy = iota

	// MergeStoreWins is the reader context's policy. When the reader
	// commits a field the writer has already made durable, the durable
	// value is kept and the reader edit is discarded.
	MergeStoreWins
)

/*
Context is one logical view over the persisted entity graph. The store
owns exactly two: a reader context for the UI affinity and a writer
context bound to the serialized mutation queue. Entities never cross
contexts by reference. Callers hold durable IDs and re-resolve them in
whichever context they are working in.
*/
type Context struct {
	name   string
	policy MergePolicy
	store  *DataStore

	markers map[uint]*models.Marker
	albums  map[uint]*models.Album
	photos  map[uint]*models.Photo

	revisions map[entityRef]uint64
	pending   []change
}

func newContext(name string, policy MergePolicy, store *DataStore) *Context {
	return &Context{
		name:      name,
		policy:    policy,
		store:     store,
		markers:   map[uint]*models.Marker{},
		albums:    map[uint]*models.Album{},
		photos:    map[uint]*models.Photo{},
		revisions: map[entityRef]uint64{},
	}
}

func (c *Context) Name() string {
	return c.name
}

/*
HasPendingChanges reports whether this context holds uncommitted
mutations. A Save on a context without pending changes is a no-op.
*/
func (c *Context) HasPendingChanges() bool {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	return len(c.pending) > 0
}

/*
 * Resolution by durable identifier. These are the only way an entity
 * enters or leaves a context boundary.
 */

func (c *Context) MarkerByID(id uint) (*models.Marker, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	marker, ok := c.markers[id]

	if !ok {
		return nil, models.ErrMarkerNotFound
	}

	result := *marker
	return &result, nil
}

func (c *Context) AlbumByID(id uint) (*models.Album, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	album, ok := c.albums[id]

	if !ok {
		return nil, models.ErrAlbumNotFound
	}

	result := *album
	return &result, nil
}

func (c *Context) PhotoByID(id uint) (*models.Photo, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	photo, ok := c.photos[id]

	if !ok {
		return nil, models.ErrPhotoNotFound
	}

	result := *photo
	return &result, nil
}

/*
 * Ordered reads. Markers sort latitude then longitude descending, albums
 * sort name ascending with createdAt descending as tiebreak, and photos
 * sort name descending.
 */

func (c *Context) Markers() []models.Marker {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	return c.markersLocked()
}

func (c *Context) markersLocked() []models.Marker {
	result := make([]models.Marker, 0, len(c.markers))

	for _, marker := range c.markers {
		result = append(result, *marker)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Latitude != result[j].Latitude {
			return result[i].Latitude > result[j].Latitude
		}

		return result[i].Longitude > result[j].Longitude
	})

	return result
}

func (c *Context) AlbumsForMarker(markerID uint) []models.Album {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	return c.albumsForMarkerLocked(markerID)
}

func (c *Context) albumsForMarkerLocked(markerID uint) []models.Album {
	result := []models.Album{}

	for _, album := range c.albums {
		if album.MarkerID == markerID {
			result = append(result, *album)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}

		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}

func (c *Context) PhotosForAlbum(albumID uint) []models.Photo {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	return c.photosForAlbumLocked(albumID)
}

func (c *Context) photosForAlbumLocked(albumID uint) []models.Photo {
	result := []models.Photo{}

	for _, photo := range c.photos {
		if photo.AlbumID == albumID {
			result = append(result, *photo)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name > result[j].Name
		}

		return result[i].ID > result[j].ID
	})

	return result
}

/*
 * Mutations. Each records a pending change that Save flushes to the
 * database in one transaction.
 */

func (c *Context) CreateMarker(latitude, longitude float64) *models.Marker {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	marker := &models.Marker{
		BaseModel: models.BaseModel{
			ID:        c.store.nextMarkerID(),
			CreatedAt: time.Now().UTC(),
		},
		Latitude:  latitude,
		Longitude: longitude,
	}

	c.markers[marker.ID] = marker
	c.revisions[entityRef{kindMarker, marker.ID}] = 1
	c.pending = append(c.pending, change{op: opInsert, kind: kindMarker, id: marker.ID})

	result := *marker
	return &result
}

func (c *Context) CreateAlbum(markerID uint, name string) (*models.Album, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.markers[markerID]; !ok {
		return nil, models.ErrMarkerNotFound
	}

	album := &models.Album{
		BaseModel: models.BaseModel{
			ID:        c.store.nextAlbumID(),
			CreatedAt: time.Now().UTC(),
		},
		Name:     name,
		MarkerID: markerID,
	}

	c.albums[album.ID] = album
	c.revisions[entityRef{kindAlbum, album.ID}] = 1
	c.pending = append(c.pending, change{op: opInsert, kind: kindAlbum, id: album.ID})

	result := *album
	return &result, nil
}

func (c *Context) CreatePhoto(albumID uint, name string, image, thumbnail []byte, remoteTotal float64) (*models.Photo, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.albums[albumID]; !ok {
		return nil, models.ErrAlbumNotFound
	}

	photo := &models.Photo{
		BaseModel: models.BaseModel{
			ID:        c.store.nextPhotoID(),
			CreatedAt: time.Now().UTC(),
		},
		Name:             name,
		Image:            image,
		Thumbnail:        thumbnail,
		AlbumID:          albumID,
		RemoteTotalCount: remoteTotal,
	}

	c.photos[photo.ID] = photo
	c.revisions[entityRef{kindPhoto, photo.ID}] = 1
	c.pending = append(c.pending, change{op: opInsert, kind: kindPhoto, id: photo.ID})

	result := *photo
	return &result, nil
}

/*
UpdateAlbumRemoteTotal records a field-level change to the album's
remote total count. This is the only mutable field in the graph.
Markers are immutable after creation and photos are only ever created
or deleted.
*/
func (c *Context) UpdateAlbumRemoteTotal(albumID uint, remoteTotal float64) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	album, ok := c.albums[albumID]

	if !ok {
		return models.ErrAlbumNotFound
	}

	prev := album.RemoteTotalCount
	album.RemoteTotalCount = remoteTotal
	c.bumpRevisionLocked(entityRef{kindAlbum, albumID})

	c.pending = append(c.pending, change{
		op:   opUpdate,
		kind: kindAlbum,
		id:   albumID,
		fields: []fieldChange{
			{column: "remote_total_count", value: remoteTotal, prev: prev},
		},
	})

	return nil
}

/*
DeleteMarker removes the marker and cascades to its albums and their
photos. Children are recorded as their own delete changes so an
observer watching an album or photo scope sees the rows disappear.
*/
func (c *Context) DeleteMarker(markerID uint) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.markers[markerID]; !ok {
		return models.ErrMarkerNotFound
	}

	for _, album := range c.albumsForMarkerLocked(markerID) {
		c.deleteAlbumLocked(album.ID)
	}

	delete(c.markers, markerID)
	delete(c.revisions, entityRef{kindMarker, markerID})
	c.recordDeleteLocked(kindMarker, markerID)

	return nil
}

func (c *Context) DeleteAlbum(albumID uint) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.albums[albumID]; !ok {
		return models.ErrAlbumNotFound
	}

	c.deleteAlbumLocked(albumID)
	return nil
}

func (c *Context) deleteAlbumLocked(albumID uint) {
	for _, photo := range c.photosForAlbumLocked(albumID) {
		delete(c.photos, photo.ID)
		delete(c.revisions, entityRef{kindPhoto, photo.ID})
		c.recordDeleteLocked(kindPhoto, photo.ID)
	}

	delete(c.albums, albumID)
	delete(c.revisions, entityRef{kindAlbum, albumID})
	c.recordDeleteLocked(kindAlbum, albumID)
}

func (c *Context) DeletePhoto(photoID uint) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.photos[photoID]; !ok {
		return models.ErrPhotoNotFound
	}

	delete(c.photos, photoID)
	delete(c.revisions, entityRef{kindPhoto, photoID})
	c.recordDeleteLocked(kindPhoto, photoID)

	return nil
}

func (c *Context) bumpRevisionLocked(ref entityRef) {
	c.revisions[ref] = c.revisions[ref] + 1
}

func (c *Context) revisionLocked(ref entityRef) uint64 {
	return c.revisions[ref]
}
