package gitstore

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"
)

var ErrReferenceMismatch = errors.New("reference does not match the expected value")

type RefEditKind int

const (
	RefUpdate RefEditKind = iota
	RefCreate
	RefDelete
)

func (k RefEditKind) String() string {
	switch k {
	case RefCreate:
		return "create"
	case RefDelete:
		return "delete"
	default:
		return "update"
	}
}

// RefEdit changes one reference. Updates and deletes require the reference to exist and,
// when Expected is set, to point to it. Creates require it to not exist.
type RefEdit struct {
	Name     plumbing.ReferenceName
	Kind     RefEditKind
	Expected *plumbing.Hash
	New      plumbing.Hash
}

func (e RefEdit) String() string {
	switch e.Kind {
	case RefDelete:
		return fmt.Sprintf("delete %v", e.Name.Short())
	case RefCreate:
		return fmt.Sprintf("create %v at %v", e.Name.Short(), e.New.String()[:7])
	default:
		return fmt.Sprintf("update %v to %v", e.Name.Short(), e.New.String()[:7])
	}
}

// CheckReferences verifies the expectations of all edits without changing anything. It
// returns the current value of each edited reference, nil for the ones that do not exist.
func (r *Repository) CheckReferences(edits []RefEdit) ([]*plumbing.Reference, error) {
	olds := make([]*plumbing.Reference, len(edits))

	for i, e := range edits {
		old, err := r.Reference(e.Name)
		if err != nil {
			return nil, err
		}

		if old != nil && old.Type() == plumbing.SymbolicReference {
			return nil, errors.Errorf("can not edit symbolic reference %v", e.Name)
		}

		switch e.Kind {
		case RefCreate:
			if old != nil {
				return nil, errors.Wrapf(ErrReferenceMismatch, "%v already exists", e.Name)
			}
		default:
			if old == nil {
				return nil, errors.Wrapf(ErrReferenceMismatch, "%v does not exist", e.Name)
			}
			if e.Expected != nil && old.Hash() != *e.Expected {
				return nil, errors.Wrapf(ErrReferenceMismatch, "%v points to %v, expected %v", e.Name, old.Hash(), *e.Expected)
			}
		}

		olds[i] = old
	}

	return olds, nil
}

// EditReferences applies all edits or none. Every expectation is checked before anything
// changes, and references already changed are restored if a later edit fails.
func (r *Repository) EditReferences(edits []RefEdit) error {
	olds, err := r.CheckReferences(edits)
	if err != nil {
		return err
	}

	for i, e := range edits {
		var err error
		if e.Kind == RefDelete {
			err = r.git.Storer.RemoveReference(e.Name)
		} else {
			err = r.git.Storer.SetReference(plumbing.NewHashReference(e.Name, e.New))
		}

		if err != nil {
			r.restoreReferences(edits[:i], olds[:i])
			return errors.Wrapf(err, "error applying %v", e)
		}
	}

	return nil
}

func (r *Repository) restoreReferences(edits []RefEdit, olds []*plumbing.Reference) {
	for i := len(edits) - 1; i >= 0; i-- {
		var err error
		if olds[i] == nil {
			err = r.git.Storer.RemoveReference(edits[i].Name)
		} else {
			err = r.git.Storer.SetReference(olds[i])
		}

		if err != nil {
			r.console.Printf("Error restoring %v: %v\n", edits[i].Name, err)
		}
	}
}
