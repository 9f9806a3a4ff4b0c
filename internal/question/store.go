package question

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("question record not found")

// PersistenceError wraps a single-record write failure.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s record %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// GroupKey identifies records judged near-duplicates.
type GroupKey struct {
	Exam   string `bson:"exam"`
	Year   *int   `bson:"year"`
	Lang   string `bson:"lang"`
	Prefix string `bson:"prefix"`
}

// GroupMember is the projection of a record needed to pick a representative.
type GroupMember struct {
	ID         string `bson:"id"`
	Verified   bool   `bson:"verified"`
	SourceLink string `bson:"sourceLink"`
}

// DuplicateGroup lists the members sharing one GroupKey, earliest-indexed first.
type DuplicateGroup struct {
	Key     GroupKey      `bson:"_id"`
	Members []GroupMember `bson:"members"`
}

// Scanner pages forward through the corpus ordered by id.
type Scanner interface {
	Scan(ctx context.Context, afterID string, limit int) ([]Record, error)
}

// Store is the corpus persistence contract.
type Store interface {
	Scanner
	Insert(ctx context.Context, rec Record) error
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
	// DuplicateGroups returns every group of more than one record sharing
	// exam, year, lang and the first prefixLen characters of the question.
	DuplicateGroups(ctx context.Context, prefixLen int) ([]DuplicateGroup, error)
	EnsureIndexes(ctx context.Context) error
	Close(ctx context.Context) error
}
