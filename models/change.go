package models

// ChangeKind is the row-level mutation kind reported by the database layer.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// PendingChange is one row-level change observed inside a still-open
// transaction. It is ephemeral: created by the transaction observer, consumed
// on commit, discarded on rollback. Never persisted.
type PendingChange struct {
	Table string
	RowID int64
	Kind  ChangeKind
}
