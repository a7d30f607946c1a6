package datastore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adampresley/phototourist/pkg/models"
	"github.com/rfberaldo/sqlz"
)

/*
DataStore owns the persisted entity graph of markers, albums, and
photos. It keeps two in-memory contexts over the same durable rows: a
reader context for the UI affinity and observers, and a writer context
that all background mutations serialize through. A successful writer
commit is merged field-level into the reader context (writer-wins),
and a reader commit merges store-wins, so the two always converge
after every save.
*/
type DataStore struct {
	db *sqlz.DB

	mu        sync.Mutex
	reader    *Context
	writer    *Context
	observers []*Observer

	markerSeq uint
	albumSeq  uint
	photoSeq  uint

	jobs     chan writeJob
	stopOnce sync.Once
	stopped  chan struct{}
}

type DataStoreConfig struct {
	DB *sqlz.DB
}

type writeJob struct {
	fn   func(ctx *Context) error
	done chan error
}

func NewDataStore(config DataStoreConfig) (*DataStore, error) {
	var (
		err error
	)

	if config.DB == nil {
		return nil, fmt.Errorf("datastore requires a database handle")
	}

	store := &DataStore{
		db:      config.DB,
		jobs:    make(chan writeJob),
		stopped: make(chan struct{}),
	}

	store.reader = newContext("reader", MergeStoreWins, store)
	store.writer = newContext("writer", MergeWriterWins, store)

	if err = store.loadGraph(); err != nil {
		return nil, fmt.Errorf("error loading entity graph: %w", err)
	}

	go store.writeLoop()

	return store, nil
}

/*
Reader returns the reader context. All reads feeding an observer or
the UI go through it. It is never handed to a mutation path.
*/
func (s *DataStore) Reader() *Context {
	return s.reader
}

/*
Write runs fn against the writer context on the store's single
serialized mutation goroutine. Two concurrent Write calls never
interleave their effects. The call blocks until fn has run and
returns its error.
*/
func (s *DataStore) Write(fn func(ctx *Context) error) error {
	job := writeJob{
		fn:   fn,
		done: make(chan error, 1),
	}

	select {
	case s.jobs <- job:
		return <-job.done
	case <-s.stopped:
		return fmt.Errorf("datastore is closed")
	}
}

func (s *DataStore) writeLoop() {
	for {
		select {
		case job := <-s.jobs:
			job.done <- job.fn(s.writer)
		case <-s.stopped:
			return
		}
	}
}

/*
Close stops the mutation queue. Pending changes that were never saved
are discarded. The database handle is owned by the caller and stays
open.
*/
func (s *DataStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stopped)
	})
}

/*
Save commits the context's pending changes to the database in one
transaction, then merges the committed change set into the other
context and notifies observers. Saving a context with nothing pending
is a no-op. On failure the pending changes are left intact so a retry
can re-attempt the same commit.
*/
func (s *DataStore) Save(saveCtx *Context) error {
	var (
		err       error
		committed []committedChange
	)

	s.mu.Lock()
	flushCount := len(saveCtx.pending)

	if flushCount == 0 {
		s.mu.Unlock()
		return nil
	}

	committed = s.snapshotPendingLocked(saveCtx)
	s.mu.Unlock()

	if committed, err = s.flush(saveCtx, committed); err != nil {
		return &PersistenceError{Op: "save " + saveCtx.name + " context", Err: err}
	}

	s.mu.Lock()
	saveCtx.pending = saveCtx.pending[flushCount:]

	other := s.writer

	if saveCtx == s.writer {
		other = s.reader
	}

	other.mergeLocked(committed)

	notifications := s.collectNotificationsLocked()
	s.mu.Unlock()

	deliverNotifications(notifications)

	return nil
}

/*
snapshotPendingLocked copies the context's pending changes, attaching
entity snapshots for inserts so the merge into the other context never
shares a pointer across the boundary.
*/
func (s *DataStore) snapshotPendingLocked(saveCtx *Context) []committedChange {
	result := make([]committedChange, 0, len(saveCtx.pending))

	for _, pending := range saveCtx.pending {
		cc := committedChange{change: pending}

		if pending.op == opInsert {
			switch pending.kind {
			case kindMarker:
				if marker, ok := saveCtx.markers[pending.id]; ok {
					snapshot := *marker
					cc.marker = &snapshot
				}
			case kindAlbum:
				if album, ok := saveCtx.albums[pending.id]; ok {
					snapshot := *album
					cc.album = &snapshot
				}
			case kindPhoto:
				if photo, ok := saveCtx.photos[pending.id]; ok {
					snapshot := *photo
					cc.photo = &snapshot
				}
			}
		}

		result = append(result, cc)
	}

	return result
}

/*
flush writes the captured change set to the database in a single
transaction. For a store-wins context an update whose field has been
made durable by the other context since the edit is dropped from the
commit, and the stale in-memory value is reverted to the durable one.
The returned slice is the change set that actually committed.
*/
func (s *DataStore) flush(saveCtx *Context, committed []committedChange) ([]committedChange, error) {
	var (
		err error
		tx  *sqlz.Tx
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	if tx, err = s.db.Begin(ctx); err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	applied := make([]committedChange, 0, len(committed))

	for _, cc := range committed {
		switch cc.op {
		case opInsert:
			err = s.flushInsert(ctx, tx, cc)
		case opUpdate:
			cc, err = s.flushUpdate(ctx, tx, saveCtx, cc)
		case opDelete:
			err = s.flushDelete(ctx, tx, cc)
		}

		if err != nil {
			return nil, err
		}

		if cc.op == opUpdate && len(cc.fields) == 0 {
			continue
		}

		applied = append(applied, cc)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	return applied, nil
}

func (s *DataStore) flushInsert(ctx context.Context, tx *sqlz.Tx, cc committedChange) error {
	var (
		err error
	)

	switch cc.kind {
	case kindMarker:
		sql := `
INSERT INTO markers (
	id,
	created_at,
	latitude,
	longitude
) VALUES (?, ?, ?, ?)
`
		_, err = tx.Exec(ctx, sql, cc.marker.ID, cc.marker.CreatedAt, cc.marker.Latitude, cc.marker.Longitude)

	case kindAlbum:
		sql := `
INSERT INTO albums (
	id,
	created_at,
	name,
	marker_id,
	remote_total_count
) VALUES (?, ?, ?, ?, ?)
`
		_, err = tx.Exec(ctx, sql, cc.album.ID, cc.album.CreatedAt, cc.album.Name, cc.album.MarkerID, cc.album.RemoteTotalCount)

	case kindPhoto:
		sql := `
INSERT INTO photos (
	id,
	created_at,
	name,
	image,
	thumbnail,
	album_id,
	remote_total_count
) VALUES (?, ?, ?, ?, ?, ?, ?)
`
		_, err = tx.Exec(ctx, sql, cc.photo.ID, cc.photo.CreatedAt, cc.photo.Name, cc.photo.Image, cc.photo.Thumbnail, cc.photo.AlbumID, cc.photo.RemoteTotalCount)
	}

	if err != nil {
		return fmt.Errorf("error inserting %s %d: %w", tableFor(cc.kind), cc.id, err)
	}

	return nil
}

func (s *DataStore) flushUpdate(ctx context.Context, tx *sqlz.Tx, saveCtx *Context, cc committedChange) (committedChange, error) {
	var (
		err error
	)

	fields := make([]fieldChange, 0, len(cc.fields))

	for _, fc := range cc.fields {
		if saveCtx.policy == MergeStoreWins {
			overridden, durable, checkErr := s.durableFieldDiffers(ctx, tx, cc.kind, cc.id, fc)

			if checkErr != nil {
				return cc, checkErr
			}

			if overridden {
				// The writer made this field durable after our edit.
				// Store wins: keep the durable value and drop the edit.
				s.mu.Lock()
				saveCtx.applyFieldLocked(cc.kind, cc.id, fieldChange{column: fc.column, value: durable})
				s.mu.Unlock()
				continue
			}
		}

		sql := fmt.Sprintf("UPDATE %s SET %s=? WHERE id=?", tableFor(cc.kind), fc.column)

		if _, err = tx.Exec(ctx, sql, fc.value, cc.id); err != nil {
			return cc, fmt.Errorf("error updating %s %d: %w", tableFor(cc.kind), cc.id, err)
		}

		fields = append(fields, fc)
	}

	cc.fields = fields
	return cc, nil
}

func (s *DataStore) durableFieldDiffers(ctx context.Context, tx *sqlz.Tx, kind entityKind, id uint, fc fieldChange) (bool, any, error) {
	var (
		err     error
		durable float64
	)

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE id=?", fc.column, tableFor(kind))

	if err = tx.QueryRow(ctx, &durable, sql, id); err != nil {
		if sqlz.IsNotFound(err) {
			return false, nil, nil
		}

		return false, nil, fmt.Errorf("error reading durable value for %s %d: %w", tableFor(kind), id, err)
	}

	prev, ok := fc.prev.(float64)

	if !ok {
		return false, nil, nil
	}

	return durable != prev, durable, nil
}

func (s *DataStore) flushDelete(ctx context.Context, tx *sqlz.Tx, cc committedChange) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE id=?", tableFor(cc.kind))

	if _, err := tx.Exec(ctx, sql, cc.id); err != nil {
		return fmt.Errorf("error deleting %s %d: %w", tableFor(cc.kind), cc.id, err)
	}

	return nil
}

func tableFor(kind entityKind) string {
	switch kind {
	case kindMarker:
		return "markers"
	case kindAlbum:
		return "albums"
	case kindPhoto:
		return "photos"
	}

	return ""
}

/*
loadGraph reads every row into both context snapshots and seeds the
identifier sequences from the highest durable IDs.
*/
func (s *DataStore) loadGraph() error {
	var (
		err     error
		markers []models.Marker
		albums  []models.Album
		photos  []models.Photo
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	sql := `
SELECT
	m.id
	, m.created_at
	, m.latitude
	, m.longitude
FROM markers AS m
WHERE 1=1
`

	if err = s.db.Query(ctx, &markers, sql); err != nil {
		return fmt.Errorf("error querying for markers: %w", err)
	}

	sql = `
SELECT
	a.id
	, a.created_at
	, a.name
	, a.marker_id
	, a.remote_total_count
FROM albums AS a
WHERE 1=1
`

	if err = s.db.Query(ctx, &albums, sql); err != nil {
		return fmt.Errorf("error querying for albums: %w", err)
	}

	sql = `
SELECT
	p.id
	, p.created_at
	, p.name
	, p.image
	, p.thumbnail
	, p.album_id
	, p.remote_total_count
FROM photos AS p
WHERE 1=1
`

	if err = s.db.Query(ctx, &photos, sql); err != nil {
		return fmt.Errorf("error querying for photos: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, target := range []*Context{s.reader, s.writer} {
		for _, marker := range markers {
			copy := marker
			target.markers[marker.ID] = &copy
			target.revisions[entityRef{kindMarker, marker.ID}] = 1
		}

		for _, album := range albums {
			copy := album
			target.albums[album.ID] = &copy
			target.revisions[entityRef{kindAlbum, album.ID}] = 1
		}

		for _, photo := range photos {
			copy := photo
			target.photos[photo.ID] = &copy
			target.revisions[entityRef{kindPhoto, photo.ID}] = 1
		}
	}

	for _, marker := range markers {
		if marker.ID > s.markerSeq {
			s.markerSeq = marker.ID
		}
	}

	for _, album := range albums {
		if album.ID > s.albumSeq {
			s.albumSeq = album.ID
		}
	}

	for _, photo := range photos {
		if photo.ID > s.photoSeq {
			s.photoSeq = photo.ID
		}
	}

	return nil
}

/*
 * Identifier sequences. Callers hold s.mu.
 */

func (s *DataStore) nextMarkerID() uint {
	s.markerSeq++
	return s.markerSeq
}

func (s *DataStore) nextAlbumID() uint {
	s.albumSeq++
	return s.albumSeq
}

func (s *DataStore) nextPhotoID() uint {
	s.photoSeq++
	return s.photoSeq
}
