package storages

import (
	"time"
)

type Storage interface {
	LoadConfig() (*map[string]string, error)
	WriteConfig() error

	// LoadOperations returns the operation log, newest first.
	LoadOperations() ([]*Operation, error)
	WriteOperation(op *Operation) error

	Close() error
}

// Operation is one entry of the operation log: a rewrite that was applied, or refused.
type Operation struct {
	ID        string
	Kind      string
	Arguments []string
	Started   time.Time
	Duration  time.Duration

	// RefsBefore and RefsAfter map the names of the references the operation changed to
	// their commits. Created references are missing from RefsBefore, and deleted ones from
	// RefsAfter.
	RefsBefore    map[string]string
	RefsAfter     map[string]string
	CommitMapping map[string]string

	Illegal string
	Error   string
}

func NewOperation(kind string, args ...string) *Operation {
	return &Operation{
		ID:            NewID(),
		Kind:          kind,
		Arguments:     args,
		Started:       time.Now(),
		RefsBefore:    map[string]string{},
		RefsAfter:     map[string]string{},
		CommitMapping: map[string]string{},
	}
}
