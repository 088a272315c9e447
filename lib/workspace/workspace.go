package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pescuma/lanes/lib/checkout"
	"github.com/pescuma/lanes/lib/consoles"
	"github.com/pescuma/lanes/lib/gitstore"
	"github.com/pescuma/lanes/lib/operations"
	"github.com/pescuma/lanes/lib/storages"
	"github.com/pescuma/lanes/lib/storages/orm"
	"github.com/pescuma/lanes/lib/utils"
	"github.com/pescuma/lanes/lib/worktreelock"
)

const (
	ConfigBase        = "lanes.base"
	ConfigRefs        = "lanes.refs"
	ConfigUncommitted = "checkout.uncommitted"
	ConfigUserName    = "user.name"
	ConfigUserEmail   = "user.email"

	configEditCommit     = "edit.commit"
	configEditHead       = "edit.head"
	configEditHeadCommit = "edit.head-commit"
)

var ErrNotEditing = errors.New("not in edit mode")

type Workspace struct {
	console consoles.Console
	storage storages.Storage
	repo    *gitstore.Repository
	lock    *worktreelock.Lock
	now     func() time.Time
}

// NewWorkspace opens the git repository containing repoPath and its workspace database. An
// empty file means .lanes/lanes.sqlite when that folder exists, or lanes.sqlite inside the
// git folder.
func NewWorkspace(repoPath string, file string) (*Workspace, error) {
	console := consoles.NewStdOutConsole()

	repo, err := gitstore.Open(repoPath, console)
	if err != nil {
		return nil, err
	}

	wt, err := repo.Git().Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "lanes needs a repository with a worktree")
	}
	root := wt.Filesystem.Root()

	if file == "" {
		if _, err := os.Stat(filepath.Join(root, ".lanes")); err == nil {
			file = filepath.Join(root, ".lanes", "lanes.sqlite")
		} else {
			file = filepath.Join(root, ".git", "lanes.sqlite")
		}
	}

	var storage storages.Storage
	switch {
	case file == ":memory:":
		storage, err = orm.NewGormStorage(orm.WithSqliteInMemory(), console)

	case strings.HasSuffix(file, ".sqlite"):
		file, err = utils.PathAbs(file)
		if err != nil {
			return nil, err
		}

		err = createWorkspaceDir(file)
		if err != nil {
			return nil, err
		}

		storage, err = orm.NewGormStorage(orm.WithSqlite(file), console)

	default:
		return nil, fmt.Errorf("unknown storage type for file %v", file)
	}
	if err != nil {
		return nil, err
	}

	return New(repo, storage, worktreelock.ForRepository(root), console), nil
}

func New(repo *gitstore.Repository, storage storages.Storage, lock *worktreelock.Lock, console consoles.Console) *Workspace {
	return &Workspace{
		console: console,
		storage: storage,
		repo:    repo,
		lock:    lock,
		now:     time.Now,
	}
}

func createWorkspaceDir(file string) error {
	path := filepath.Dir(file)

	if _, err := os.Stat(path); err != nil {
		fmt.Printf("Creating workspace at %v\n", path)
		err = os.MkdirAll(path, 0o700)
		if err != nil {
			return err
		}
	}

	return nil
}

func (w *Workspace) Close() error {
	return w.storage.Close()
}

func (w *Workspace) Console() consoles.Console {
	return w.console
}

func (w *Workspace) Repository() *gitstore.Repository {
	return w.repo
}

func (w *Workspace) Config() (map[string]string, error) {
	cfg, err := w.storage.LoadConfig()
	if err != nil {
		return nil, err
	}

	return lo.Assign(*cfg), nil
}

// SetConfig stores a setting. An empty value removes it.
func (w *Workspace) SetConfig(key string, value string) error {
	switch key {
	case ConfigRefs:
		if _, err := glob.Compile(value, '/'); err != nil {
			return errors.Wrapf(err, "invalid %v", key)
		}
	case ConfigUncommitted:
		if _, err := checkout.ParseUncommittedChanges(value); err != nil {
			return err
		}
	}

	return w.updateConfig(map[string]string{key: value})
}

func (w *Workspace) updateConfig(values map[string]string) error {
	cfg, err := w.storage.LoadConfig()
	if err != nil {
		return err
	}

	for k, v := range values {
		if v == "" {
			delete(*cfg, k)
		} else {
			(*cfg)[k] = v
		}
	}

	return w.storage.WriteConfig()
}

// Options reads the lanes of the workspace from the settings and the repository.
func (w *Workspace) Options() (operations.Options, error) {
	var result operations.Options

	cfg, err := w.Config()
	if err != nil {
		return result, err
	}

	baseName := cfg[ConfigBase]
	if baseName == "" {
		return result, errors.Errorf("%v is not set, use: lanes config set %v <branch>", ConfigBase, ConfigBase)
	}

	result.Base, err = w.repo.ResolveCommit(baseName)
	if err != nil {
		return result, err
	}

	refs := lo.Ternary(cfg[ConfigRefs] != "", cfg[ConfigRefs], "*")
	filter, err := glob.Compile(refs, '/')
	if err != nil {
		return result, errors.Wrapf(err, "invalid %v", ConfigRefs)
	}
	result.References = refs

	branches, err := w.repo.Branches()
	if err != nil {
		return result, err
	}

	for _, b := range branches {
		name := b.Name()
		if name.Short() == baseName || string(name) == baseName || !filter.Match(name.Short()) {
			continue
		}
		if b.Hash() == result.Base {
			continue
		}

		descends, err := gitstore.IsAncestor(w.repo.Storer(), result.Base, b.Hash())
		if err != nil {
			return result, err
		}
		if descends {
			result.Lanes = append(result.Lanes, name)
		}
	}

	result.UncommittedChanges, err = checkout.ParseUncommittedChanges(cfg[ConfigUncommitted])
	if err != nil {
		return result, err
	}

	if cfg[ConfigUserName] != "" || cfg[ConfigUserEmail] != "" {
		sig := w.repo.Signature(w.now())
		if cfg[ConfigUserName] != "" {
			sig.Name = cfg[ConfigUserName]
		}
		if cfg[ConfigUserEmail] != "" {
			sig.Email = cfg[ConfigUserEmail]
		}
		result.Identity = &sig
	}

	result.Now = w.now

	return result, nil
}

func (w *Workspace) Lanes(ctx context.Context) ([]*operations.Lane, error) {
	return read(ctx, w, func(opts operations.Options) ([]*operations.Lane, error) {
		return operations.ListLanes(w.repo, opts)
	})
}

// Dependencies analyzes the hunk dependencies of all lanes. progress can be nil.
func (w *Workspace) Dependencies(ctx context.Context, progress func(*object.Commit)) (*operations.Dependencies, error) {
	return read(ctx, w, func(opts operations.Options) (*operations.Dependencies, error) {
		return operations.AnalyzeDependencies(w.repo, opts, progress)
	})
}

func (w *Workspace) Operations(ctx context.Context) ([]*storages.Operation, error) {
	guard, err := w.lock.Shared(ctx)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	return w.storage.LoadOperations()
}

func (w *Workspace) MoveCommit(ctx context.Context, commit string, lane string) (*operations.Result, error) {
	return w.write(ctx, "move", []string{commit, lane}, func(opts operations.Options) (*operations.Result, error) {
		return operations.MoveCommit(w.repo, opts, commit, lane)
	})
}

func (w *Workspace) ReorderCommit(ctx context.Context, commit string, onto string) (*operations.Result, error) {
	return w.write(ctx, "reorder", []string{commit, onto}, func(opts operations.Options) (*operations.Result, error) {
		return operations.ReorderCommit(w.repo, opts, commit, onto)
	})
}

func (w *Workspace) UncommitChanges(ctx context.Context, commit string, patterns []string) (*operations.Result, error) {
	return w.write(ctx, "uncommit", append([]string{commit}, patterns...), func(opts operations.Options) (*operations.Result, error) {
		return operations.UncommitChanges(w.repo, opts, commit, patterns)
	})
}

func (w *Workspace) RenameBranch(ctx context.Context, oldName string, newName string) (*operations.Result, error) {
	return w.write(ctx, "rename", []string{oldName, newName}, func(opts operations.Options) (*operations.Result, error) {
		return operations.RenameBranch(w.repo, opts, oldName, newName)
	})
}

func (w *Workspace) StackBranch(ctx context.Context, branch string, onto string) (*operations.Result, error) {
	return w.write(ctx, "stack", []string{branch, onto}, func(opts operations.Options) (*operations.Result, error) {
		return operations.StackBranch(w.repo, opts, branch, onto)
	})
}

// EnterEditMode checks out a conflicted commit and remembers where HEAD was, so Resolve can
// run later.
func (w *Workspace) EnterEditMode(ctx context.Context, commit string) (*operations.EditMode, error) {
	guard, err := w.lock.Exclusive(ctx)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	current, err := w.editMode()
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, errors.Errorf("already editing %v", current.Commit)
	}

	opts, err := w.Options()
	if err != nil {
		return nil, err
	}

	mode, err := operations.EnterEditMode(w.repo, opts, commit)
	if err != nil {
		return nil, err
	}

	err = w.updateConfig(map[string]string{
		configEditCommit:     mode.Commit.String(),
		configEditHead:       string(mode.Head),
		configEditHeadCommit: lo.Ternary(mode.HeadCommit.IsZero(), "", mode.HeadCommit.String()),
	})
	if err != nil {
		return nil, err
	}

	return mode, nil
}

// EditMode returns nil when not editing.
func (w *Workspace) EditMode() (*operations.EditMode, error) {
	return w.editMode()
}

func (w *Workspace) editMode() (*operations.EditMode, error) {
	cfg, err := w.Config()
	if err != nil {
		return nil, err
	}

	commit := cfg[configEditCommit]
	if commit == "" {
		return nil, nil
	}

	return &operations.EditMode{
		Commit:     plumbing.NewHash(commit),
		Head:       plumbing.ReferenceName(cfg[configEditHead]),
		HeadCommit: plumbing.NewHash(cfg[configEditHeadCommit]),
	}, nil
}

// Resolve leaves edit mode, replacing the conflicted commit by the worktree content.
func (w *Workspace) Resolve(ctx context.Context) (*operations.Result, error) {
	mode, err := w.EditMode()
	if err != nil {
		return nil, err
	}
	if mode == nil {
		return nil, ErrNotEditing
	}

	result, err := w.write(ctx, "resolve", []string{mode.Commit.String()}, func(opts operations.Options) (*operations.Result, error) {
		tree, err := operations.WorktreeTree(w.repo)
		if err != nil {
			return nil, err
		}

		return operations.LeaveEditMode(w.repo, opts, *mode, tree)
	})
	if err != nil {
		return nil, err
	}

	err = w.updateConfig(map[string]string{
		configEditCommit:     "",
		configEditHead:       "",
		configEditHeadCommit: "",
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func read[T any](ctx context.Context, w *Workspace, f func(operations.Options) (T, error)) (T, error) {
	var zero T

	guard, err := w.lock.Shared(ctx)
	if err != nil {
		return zero, err
	}
	defer guard.Release()

	opts, err := w.Options()
	if err != nil {
		return zero, err
	}

	return f(opts)
}

// write runs an operation with exclusive access to the worktree and records it in the
// operation log.
func (w *Workspace) write(ctx context.Context, kind string, args []string, f func(operations.Options) (*operations.Result, error)) (*operations.Result, error) {
	guard, err := w.lock.Exclusive(ctx)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	opts, err := w.Options()
	if err != nil {
		return nil, err
	}

	op := storages.NewOperation(kind, args...)
	op.Started = w.now()

	before, err := w.branchTips()
	if err != nil {
		return nil, err
	}

	result, opErr := f(opts)

	after, err := w.branchTips()
	if err != nil {
		return nil, err
	}

	op.Duration = w.now().Sub(op.Started)
	recordRefChanges(op, before, after)

	switch {
	case opErr != nil:
		op.Error = opErr.Error()
	case result.Illegal != nil:
		op.Illegal = result.Illegal.Error()
	case result.Outcome != nil:
		for o, n := range result.Outcome.CommitMapping {
			if o != n {
				op.CommitMapping[o.String()] = n.String()
			}
		}
	}

	err = w.storage.WriteOperation(op)
	if err != nil {
		if opErr != nil {
			return nil, opErr
		}
		return nil, errors.Wrap(err, "error writing operation log")
	}

	if opErr != nil {
		return nil, opErr
	}
	return result, nil
}

func (w *Workspace) branchTips() (map[string]string, error) {
	branches, err := w.repo.Branches()
	if err != nil {
		return nil, err
	}

	return lo.Associate(branches, func(b *plumbing.Reference) (string, string) {
		return string(b.Name()), b.Hash().String()
	}), nil
}

func recordRefChanges(op *storages.Operation, before, after map[string]string) {
	for name, h := range before {
		if after[name] != h {
			op.RefsBefore[name] = h
		}
	}
	for name, h := range after {
		if before[name] != h {
			op.RefsAfter[name] = h
		}
	}
}
