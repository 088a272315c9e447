package gitstore

import (
	"io"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/pkg/errors"
)

type encodable interface {
	Encode(o plumbing.EncodedObject) error
}

// WriteObject encodes a commit, tree or tag into the store.
func WriteObject(s storer.EncodedObjectStorer, o encodable) (plumbing.Hash, error) {
	obj := s.NewEncodedObject()

	err := o.Encode(obj)
	if err != nil {
		return plumbing.ZeroHash, errors.Wrap(err, "error encoding object")
	}

	h, err := s.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, errors.Wrap(err, "error storing object")
	}

	return h, nil
}

func WriteBlob(s storer.EncodedObjectStorer, content []byte) (plumbing.Hash, error) {
	obj := s.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(content)))

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	_, err = w.Write(content)
	if err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}

	err = w.Close()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	return s.SetEncodedObject(obj)
}

func ReadBlob(s storer.EncodedObjectStorer, h plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(s, h)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading blob %v", h)
	}

	r, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// FindCommit reads a commit from any store, including overlays.
func FindCommit(s storer.EncodedObjectStorer, h plumbing.Hash) (*object.Commit, error) {
	return findCommit(s, h)
}
