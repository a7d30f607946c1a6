package datastore

/*
ObserverState tracks an observer's lifecycle. A stopped observer never
delivers again; watching the same scope afterwards requires a fresh
Observe call, which runs a new initial fetch.
*/
type ObserverState int

const (
	StateIdle ObserverState = iota
	StateFetching
	StateObserving
	StateNotifying
	StateStopped
)

/*
Query defines the scope an observer watches: which rows, filtered and
ordered, against a context snapshot. Rows is always invoked by the
store with its lock held, so implementations read the context's
snapshot directly.
*/
type Query interface {
	Rows(ctx *Context) []Row
}

/*
MarkersQuery watches every marker, ordered latitude then longitude
descending.
*/
type MarkersQuery struct{}

func (q MarkersQuery) Rows(ctx *Context) []Row {
	markers := ctx.markersLocked()
	result := make([]Row, 0, len(markers))

	for _, marker := range markers {
		result = append(result, Row{ID: marker.ID, Revision: ctx.revisionLocked(entityRef{kindMarker, marker.ID})})
	}

	return result
}

/*
AlbumsForMarkerQuery watches the albums under one marker, ordered name
ascending with createdAt descending as tiebreak.
*/
type AlbumsForMarkerQuery struct {
	MarkerID uint
}

func (q AlbumsForMarkerQuery) Rows(ctx *Context) []Row {
	albums := ctx.albumsForMarkerLocked(q.MarkerID)
	result := make([]Row, 0, len(albums))

	for _, album := range albums {
		result = append(result, Row{ID: album.ID, Revision: ctx.revisionLocked(entityRef{kindAlbum, album.ID})})
	}

	return result
}

/*
PhotosForAlbumQuery watches the photos under one album, ordered name
descending.
*/
type PhotosForAlbumQuery struct {
	AlbumID uint
}

func (q PhotosForAlbumQuery) Rows(ctx *Context) []Row {
	photos := ctx.photosForAlbumLocked(q.AlbumID)
	result := make([]Row, 0, len(photos))

	for _, photo := range photos {
		result = append(result, Row{ID: photo.ID, Revision: ctx.revisionLocked(entityRef{kindPhoto, photo.ID})})
	}

	return result
}

/*
Observer watches one query scope against the reader context and hands
its subscriber an ordered diff after every committed change, instead
of forcing a full re-read. Handlers run serially on the goroutine that
performed the save; they must not call Save themselves.
*/
type Observer struct {
	store   *DataStore
	query   Query
	handler func(changes []RowChange)

	state ObserverState
	rows  []Row
}

/*
Observe registers a new observer for the query scope. The initial
materialization happens before Observe returns, so the first handler
call only ever carries changes relative to that baseline.
*/
func (s *DataStore) Observe(query Query, handler func(changes []RowChange)) *Observer {
	observer := &Observer{
		store:   s,
		query:   query,
		handler: handler,
		state:   StateFetching,
	}

	s.mu.Lock()
	observer.rows = query.Rows(s.reader)
	observer.state = StateObserving
	s.observers = append(s.observers, observer)
	s.mu.Unlock()

	return observer
}

/*
Rows returns the observer's last materialized ordering.
*/
func (o *Observer) Rows() []Row {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()

	result := make([]Row, len(o.rows))
	copy(result, o.rows)

	return result
}

func (o *Observer) State() ObserverState {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()

	return o.state
}

/*
Stop tears the observer down. No notification is delivered after Stop
returns, and the observer cannot be restarted.
*/
func (o *Observer) Stop() {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()

	o.state = StateStopped
	o.rows = nil

	observers := o.store.observers[:0]

	for _, registered := range o.store.observers {
		if registered != o {
			observers = append(observers, registered)
		}
	}

	o.store.observers = observers
}

type notification struct {
	observer *Observer
	changes  []RowChange
}

/*
collectNotificationsLocked re-materializes every observing scope
against the reader context and diffs it against the last known
ordering. Called with the store lock held after a merge.
*/
func (s *DataStore) collectNotificationsLocked() []notification {
	var (
		result []notification
	)

	for _, observer := range s.observers {
		if observer.state != StateObserving {
			continue
		}

		newRows := observer.query.Rows(s.reader)
		changes := diffRows(observer.rows, newRows)
		observer.rows = newRows

		if len(changes) == 0 {
			continue
		}

		observer.state = StateNotifying
		result = append(result, notification{observer: observer, changes: changes})
	}

	return result
}

func deliverNotifications(notifications []notification) {
	for _, n := range notifications {
		// A Stop between collection and delivery silences the
		// observer, even for a notification already gathered.
		n.observer.store.mu.Lock()
		stopped := n.observer.state != StateNotifying
		n.observer.store.mu.Unlock()

		if stopped {
			continue
		}

		n.observer.handler(n.changes)

		n.observer.store.mu.Lock()

		if n.observer.state == StateNotifying {
			n.observer.state = StateObserving
		}

		n.observer.store.mu.Unlock()
	}
}
