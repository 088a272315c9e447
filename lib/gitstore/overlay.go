package gitstore

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Overlay keeps new objects in memory and reads everything else from the repository.
// Nothing written to it is visible in the repository until Repository.Persist.
type Overlay struct {
	*memory.ObjectStorage
	base storer.EncodedObjectStorer
}

func newOverlay(base storer.EncodedObjectStorer) *Overlay {
	return &Overlay{
		ObjectStorage: &memory.NewStorage().ObjectStorage,
		base:          base,
	}
}

func (o *Overlay) EncodedObject(t plumbing.ObjectType, h plumbing.Hash) (plumbing.EncodedObject, error) {
	obj, err := o.ObjectStorage.EncodedObject(t, h)
	if err == plumbing.ErrObjectNotFound {
		return o.base.EncodedObject(t, h)
	}
	return obj, err
}

func (o *Overlay) HasEncodedObject(h plumbing.Hash) error {
	if o.ObjectStorage.HasEncodedObject(h) == nil {
		return nil
	}
	return o.base.HasEncodedObject(h)
}

func (o *Overlay) EncodedObjectSize(h plumbing.Hash) (int64, error) {
	size, err := o.ObjectStorage.EncodedObjectSize(h)
	if err == plumbing.ErrObjectNotFound {
		return o.base.EncodedObjectSize(h)
	}
	return size, err
}

func (o *Overlay) IterEncodedObjects(t plumbing.ObjectType) (storer.EncodedObjectIter, error) {
	mem, err := o.ObjectStorage.IterEncodedObjects(t)
	if err != nil {
		return nil, err
	}

	base, err := o.base.IterEncodedObjects(t)
	if err != nil {
		return nil, err
	}

	return storer.NewMultiEncodedObjectIter([]storer.EncodedObjectIter{mem, base}), nil
}

// Written returns the number of objects kept in memory.
func (o *Overlay) Written() int {
	return len(o.Objects)
}

// Contains checks if the object was written to the overlay itself.
func (o *Overlay) Contains(h plumbing.Hash) bool {
	_, ok := o.Objects[h]
	return ok
}
