package model

// ChangeKind is the kind of row change delivered by the change feed
type ChangeKind string

const (
	ChangeInserted ChangeKind = "INSERT"
	ChangeUpdated  ChangeKind = "UPDATE"
	ChangeDeleted  ChangeKind = "DELETE"
)

// Change is a single row change for one owner.
// For deletes only Task.ID (and Task.OwnerID) are meaningful.
type Change struct {
	Kind ChangeKind `json:"type"`
	Task Task       `json:"task"`
}

// Inserted builds an INSERT change
func Inserted(t Task) Change {
	return Change{Kind: ChangeInserted, Task: t}
}

// Updated builds an UPDATE change
func Updated(t Task) Change {
	return Change{Kind: ChangeUpdated, Task: t}
}

// Deleted builds a DELETE change for the given id
func Deleted(id, ownerID string) Change {
	return Change{Kind: ChangeDeleted, Task: Task{ID: id, OwnerID: ownerID}}
}
