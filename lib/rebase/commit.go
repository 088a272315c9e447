package rebase

import (
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"

	"github.com/pescuma/lanes/lib/gitstore"
)

// DateMode tells how committer and author are updated when a commit is rewritten.
type DateMode int

const (
	// CommitterUpdateAuthorKeep sets the current identity and time as committer.
	CommitterUpdateAuthorKeep DateMode = iota
	// CommitterUpdateAuthorUpdate also moves the author time to now.
	CommitterUpdateAuthorUpdate
	// CommitterKeepAuthorKeep keeps both signatures as they are.
	CommitterKeepAuthorKeep
)

func (m DateMode) String() string {
	switch m {
	case CommitterUpdateAuthorUpdate:
		return "committer-update-author-update"
	case CommitterKeepAuthorKeep:
		return "committer-keep-author-keep"
	default:
		return "committer-update-author-keep"
	}
}

// NewCommit writes a copy of commit to the overlay, without its signature and with the
// committer updated according to mode. The step graph is not changed.
func (e *Editor) NewCommit(commit *object.Commit, mode DateMode) (plumbing.Hash, error) {
	c := *commit
	c.PGPSignature = ""
	c.ParentHashes = append([]plumbing.Hash{}, commit.ParentHashes...)

	now := e.now()

	switch mode {
	case CommitterUpdateAuthorKeep:
		c.Committer = e.committer(now)
	case CommitterUpdateAuthorUpdate:
		c.Committer = e.committer(now)
		c.Author.When = now
	case CommitterKeepAuthorKeep:
	default:
		return plumbing.ZeroHash, errors.Errorf("unknown date mode %v", mode)
	}

	return gitstore.WriteObject(e.overlay, &c)
}

func (e *Editor) committer(now time.Time) object.Signature {
	if e.identity == nil {
		return e.repo.Signature(now)
	}

	result := *e.identity
	result.When = now
	return result
}
