package datastore

type DiffOp int

const (
	DiffInsert DiffOp = iota
	DiffDelete
	DiffMove
	DiffUpdate
)

func (op DiffOp) String() string {
	switch op {
	case DiffInsert:
		return "insert"
	case DiffDelete:
		return "delete"
	case DiffMove:
		return "move"
	case DiffUpdate:
		return "update"
	}

	return "unknown"
}

/*
Row is one materialized entry of a watched scope: the entity's durable
ID plus the revision counter the context bumps on every change to it.
*/
type Row struct {
	ID       uint
	Revision uint64
}

/*
RowChange is one step of an ordered diff between two materializations
of the same scope. Positions follow list-diff convention: deletes and
move origins are positions in the pre-change ordering, inserts and
move destinations are positions in the post-change ordering.
*/
type RowChange struct {
	Op          DiffOp
	Position    int
	NewPosition int
}

/*
diffRows computes the ordered change set turning oldRows into newRows.
Deletes are emitted first in pre-change order, then inserts in
post-change order, then moves for surviving rows whose relative order
among survivors changed, then updates for rows whose revision bumped
in place.
*/
func diffRows(oldRows, newRows []Row) []RowChange {
	var (
		result []RowChange
	)

	oldIndex := map[uint]int{}
	newIndex := map[uint]int{}

	for i, row := range oldRows {
		oldIndex[row.ID] = i
	}

	for i, row := range newRows {
		newIndex[row.ID] = i
	}

	for i, row := range oldRows {
		if _, ok := newIndex[row.ID]; !ok {
			result = append(result, RowChange{Op: DiffDelete, Position: i})
		}
	}

	for i, row := range newRows {
		if _, ok := oldIndex[row.ID]; !ok {
			result = append(result, RowChange{Op: DiffInsert, Position: i})
		}
	}

	/*
	 * Rank surviving rows on both sides. A survivor whose rank among
	 * survivors changed has genuinely moved. One that merely shifted
	 * because of inserts or deletes around it has not.
	 */
	oldRank := map[uint]int{}
	newRank := map[uint]int{}
	rank := 0

	for _, row := range oldRows {
		if _, ok := newIndex[row.ID]; ok {
			oldRank[row.ID] = rank
			rank++
		}
	}

	rank = 0

	for _, row := range newRows {
		if _, ok := oldIndex[row.ID]; ok {
			newRank[row.ID] = rank
			rank++
		}
	}

	moved := map[uint]bool{}

	for _, row := range newRows {
		oldPos, ok := oldIndex[row.ID]

		if !ok {
			continue
		}

		if oldRank[row.ID] != newRank[row.ID] {
			moved[row.ID] = true
			result = append(result, RowChange{Op: DiffMove, Position: oldPos, NewPosition: newIndex[row.ID]})
		}
	}

	for _, row := range newRows {
		oldPos, ok := oldIndex[row.ID]

		if !ok || moved[row.ID] {
			continue
		}

		if oldRows[oldPos].Revision != row.Revision {
			result = append(result, RowChange{Op: DiffUpdate, Position: newIndex[row.ID]})
		}
	}

	return result
}
