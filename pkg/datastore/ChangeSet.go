package datastore

import (
	"github.com/adampresley/phototourist/pkg/models"
)

type changeOp int

const (
	opInsert changeOp = iota
	opUpdate
	opDelete
)

type entityKind int

const (
	kindMarker entityKind = iota
	kindAlbum
	kindPhoto
)

type entityRef struct {
	kind entityKind
	id   uint
}

type fieldChange struct {
	column string
	value  any

	// prev is the value the field held in this context before the edit.
	// The reader context's store-wins merge compares it against the
	// durable value to detect a writer commit it must not override.
	prev any
}

type change struct {
	op     changeOp
	kind   entityKind
	id     uint
	fields []fieldChange
}

/*
committedChange is one change after a successful Save, carrying a
snapshot of the inserted entity so the merge can materialize it in the
other context without sharing a pointer across the boundary.
*/
type committedChange struct {
	change

	marker *models.Marker
	album  *models.Album
	photo  *models.Photo
}

/*
mergeLocked applies a committed change set from the other context to
this one. For the reader context (writer-wins source) committed fields
replace any unsaved reader edit to the same field, and the stale
reader edit is dropped from its pending list. For the writer context
(store-wins source is the reader) a field the writer has pending
edits for is left alone so the serialized mutation pipeline is never
silently overridden.
*/
func (c *Context) mergeLocked(committed []committedChange) {
	for _, cc := range committed {
		switch cc.op {
		case opInsert:
			c.mergeInsertLocked(cc)
		case opUpdate:
			c.mergeUpdateLocked(cc)
		case opDelete:
			c.mergeDeleteLocked(cc)
		}
	}
}

func (c *Context) mergeInsertLocked(cc committedChange) {
	ref := entityRef{cc.kind, cc.id}

	switch cc.kind {
	case kindMarker:
		marker := *cc.marker
		c.markers[cc.id] = &marker
	case kindAlbum:
		album := *cc.album
		c.albums[cc.id] = &album
	case kindPhoto:
		photo := *cc.photo
		c.photos[cc.id] = &photo
	}

	c.bumpRevisionLocked(ref)
}

func (c *Context) mergeUpdateLocked(cc committedChange) {
	for _, fc := range cc.fields {
		if c.hasPendingFieldLocked(cc.kind, cc.id, fc.column) {
			// The writer context never yields a field it has an
			// uncommitted edit for.
			if c.policy == MergeWriterWins {
				continue
			}

			// The reader context yields: drop its unsaved edit.
			c.dropPendingFieldLocked(cc.kind, cc.id, fc.column)
		}

		c.applyFieldLocked(cc.kind, cc.id, fc)
	}

	c.bumpRevisionLocked(entityRef{cc.kind, cc.id})
}

func (c *Context) mergeDeleteLocked(cc committedChange) {
	ref := entityRef{cc.kind, cc.id}

	switch cc.kind {
	case kindMarker:
		delete(c.markers, cc.id)
	case kindAlbum:
		delete(c.albums, cc.id)
	case kindPhoto:
		delete(c.photos, cc.id)
	}

	delete(c.revisions, ref)
	c.dropPendingEntityLocked(cc.kind, cc.id)
}

func (c *Context) applyFieldLocked(kind entityKind, id uint, fc fieldChange) {
	// Only albums carry a mutable column today. The switch keeps the
	// merge honest if that ever changes.
	switch kind {
	case kindAlbum:
		album, ok := c.albums[id]

		if !ok {
			return
		}

		if fc.column == "remote_total_count" {
			album.RemoteTotalCount = fc.value.(float64)
		}
	}
}

func (c *Context) hasPendingFieldLocked(kind entityKind, id uint, column string) bool {
	for _, pending := range c.pending {
		if pending.op != opUpdate || pending.kind != kind || pending.id != id {
			continue
		}

		for _, fc := range pending.fields {
			if fc.column == column {
				return true
			}
		}
	}

	return false
}

func (c *Context) dropPendingFieldLocked(kind entityKind, id uint, column string) {
	result := c.pending[:0]

	for _, pending := range c.pending {
		if pending.op == opUpdate && pending.kind == kind && pending.id == id {
			fields := pending.fields[:0]

			for _, fc := range pending.fields {
				if fc.column != column {
					fields = append(fields, fc)
				}
			}

			pending.fields = fields

			if len(pending.fields) == 0 {
				continue
			}
		}

		result = append(result, pending)
	}

	c.pending = result
}

/*
recordDeleteLocked appends a delete change for the entity. An entity
whose insert is still pending never became durable, so instead of
recording a delete for a row that does not exist, the insert and any
later edits to it are pruned from the pending list.
*/
func (c *Context) recordDeleteLocked(kind entityKind, id uint) {
	if c.hasPendingInsertLocked(kind, id) {
		c.dropPendingEntityLocked(kind, id)
		return
	}

	c.pending = append(c.pending, change{op: opDelete, kind: kind, id: id})
}

func (c *Context) hasPendingInsertLocked(kind entityKind, id uint) bool {
	for _, pending := range c.pending {
		if pending.op == opInsert && pending.kind == kind && pending.id == id {
			return true
		}
	}

	return false
}

func (c *Context) dropPendingEntityLocked(kind entityKind, id uint) {
	result := c.pending[:0]

	for _, pending := range c.pending {
		if pending.kind == kind && pending.id == id {
			continue
		}

		result = append(result, pending)
	}

	c.pending = result
}
