package domain

// ChangeType is the kind of change observed in the corpus directory.
type ChangeType string

// Corpus change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// CorpusChange is one file change reported by a corpus watcher.
type CorpusChange struct {
	Type ChangeType
	Path string
}
