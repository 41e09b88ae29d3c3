package gitstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/octool/octool/internal/domain"
)

const remoteName = "origin"

// Outcome describes what a sync did to the local repository
type Outcome int

const (
	// AlreadyUpToDate means nothing changed on disk
	AlreadyUpToDate Outcome = iota
	// Cloned means the repository was cloned from scratch
	Cloned
	// Updated means refs or the worktree moved
	Updated
)

func (o Outcome) String() string {
	switch o {
	case AlreadyUpToDate:
		return "up_to_date"
	case Cloned:
		return "cloned"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// AuthProvider supplies credentials for remote operations
type AuthProvider interface {
	AuthMethod(ctx context.Context) (transport.AuthMethod, error)
}

// Store manages one on-disk clone
type Store struct {
	config Config
	repo   *git.Repository
	logger *slog.Logger
}

// Config holds git store configuration
type Config struct {
	Name      string
	RepoURL   string
	Branch    string
	LocalPath string
	// Depth limits clone history; zero clones everything so older
	// catalog revisions stay reachable
	Depth  int
	Auth   AuthProvider
	Logger *slog.Logger
}

// New creates a new git store instance
func New(cfg Config) (*Store, error) {
	if cfg.RepoURL == "" {
		return nil, errors.New("repo URL is required")
	}
	if cfg.LocalPath == "" {
		return nil, errors.New("local path is required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "master"
	}
	if cfg.Name == "" {
		cfg.Name = filepath.Base(cfg.LocalPath)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Store{
		config: cfg,
		logger: cfg.Logger.With("repo", cfg.Name),
	}, nil
}

// Name returns the configured repository name
func (s *Store) Name() string {
	return s.config.Name
}

// Path returns the local clone path
func (s *Store) Path() string {
	return s.config.LocalPath
}

// Branch returns the configured branch
func (s *Store) Branch() string {
	return s.config.Branch
}

// Sync clones the repository when missing, otherwise fetches and
// fast-forwards the local branch. A second call with no remote changes
// returns AlreadyUpToDate and leaves HEAD alone.
func (s *Store) Sync(ctx context.Context) (Outcome, error) {
	if err := s.open(); err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return AlreadyUpToDate, err
		}
		if err := s.clone(ctx); err != nil {
			return AlreadyUpToDate, err
		}
		return Cloned, nil
	}
	return s.fastForward(ctx)
}

// Checkout moves HEAD to rev, a commit hash, tag or branch name.
// Unknown revisions trigger a fetch of all tags before giving up.
func (s *Store) Checkout(ctx context.Context, rev string) (Outcome, error) {
	return s.checkout(ctx, rev, true)
}

// CheckoutLocal moves HEAD to rev using only objects already in the clone
func (s *Store) CheckoutLocal(ctx context.Context, rev string) (Outcome, error) {
	return s.checkout(ctx, rev, false)
}

func (s *Store) checkout(ctx context.Context, rev string, fetch bool) (Outcome, error) {
	if err := s.open(); err != nil {
		return AlreadyUpToDate, err
	}

	hash, err := s.resolve(rev)
	if err != nil && !fetch {
		return AlreadyUpToDate, fmt.Errorf("%w: %s not present locally in %s", domain.ErrRevisionNotFound, rev, s.config.Name)
	}
	if err != nil {
		s.logger.Info("revision not present locally, fetching", "revision", rev)
		if err := s.fetch(ctx, &git.FetchOptions{Tags: git.AllTags}); err != nil {
			return AlreadyUpToDate, err
		}
		if hash, err = s.resolve(rev); err != nil {
			return AlreadyUpToDate, fmt.Errorf("%w: %s in %s", domain.ErrRevisionNotFound, rev, s.config.Name)
		}
	}

	head, err := s.repo.Head()
	if err == nil && head.Hash() == hash {
		return AlreadyUpToDate, nil
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return AlreadyUpToDate, fmt.Errorf("failed to get worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return AlreadyUpToDate, fmt.Errorf("failed to get status: %w", err)
	}
	if hasLocalChanges(status) {
		return AlreadyUpToDate, fmt.Errorf("%w: %s has uncommitted changes", domain.ErrDivergedLocalState, s.config.LocalPath)
	}

	// Checkout resets the worktree hard, which drops untracked build outputs
	kept, err := s.saveUntracked(status)
	if err != nil {
		return AlreadyUpToDate, fmt.Errorf("failed to save untracked files: %w", err)
	}

	if err := worktree.Checkout(&git.CheckoutOptions{Hash: hash}); err != nil {
		return AlreadyUpToDate, fmt.Errorf("checkout failed: %w", err)
	}

	if err := s.restoreUntracked(kept); err != nil {
		return Updated, fmt.Errorf("failed to restore untracked files: %w", err)
	}

	s.logger.Info("checked out revision", "revision", rev, "commit", hash.String())
	return Updated, nil
}

// Local describes the on-disk state of the repository
func (s *Store) Local() domain.LocalRepository {
	local := domain.LocalRepository{
		Name:   s.config.Name,
		Path:   s.config.LocalPath,
		URL:    s.config.RepoURL,
		Branch: s.config.Branch,
	}

	if err := s.open(); err != nil {
		return local
	}

	head, err := s.repo.Head()
	if err != nil {
		return local
	}
	local.Head = head.Hash().String()

	tags, err := s.repo.Tags()
	if err != nil {
		return local
	}
	_ = tags.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if tag, err := s.repo.TagObject(target); err == nil {
			commit, err := tag.Commit()
			if err != nil {
				return nil
			}
			target = commit.Hash
		}
		if target == head.Hash() {
			local.Tags = append(local.Tags, ref.Name().Short())
		}
		return nil
	})

	return local
}

// CurrentCommit returns the current HEAD commit SHA
func (s *Store) CurrentCommit() string {
	return s.Local().Head
}

func (s *Store) open() error {
	if s.repo != nil {
		return nil
	}
	repo, err := git.PlainOpen(s.config.LocalPath)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return err
		}
		return fmt.Errorf("failed to open repository: %w", err)
	}
	s.repo = repo
	return nil
}

func (s *Store) clone(ctx context.Context) error {
	empty, err := isEmptyDir(s.config.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", s.config.LocalPath, err)
	}
	if !empty {
		return fmt.Errorf("%w: %s exists and is not a git repository", domain.ErrDivergedLocalState, s.config.LocalPath)
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(s.config.LocalPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	auth, err := s.getAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	s.logger.Info("cloning repository",
		"url", s.config.RepoURL,
		"branch", s.config.Branch,
		"path", s.config.LocalPath,
	)

	repo, err := git.PlainCloneContext(ctx, s.config.LocalPath, false, &git.CloneOptions{
		URL:           s.config.RepoURL,
		Auth:          auth,
		Depth:         s.config.Depth,
		SingleBranch:  true,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
	})
	if err != nil {
		return s.remoteError("clone", err)
	}
	s.repo = repo

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get current commit: %w", err)
	}

	s.logger.Info("clone completed", "commit", head.Hash().String())
	return nil
}

func (s *Store) fastForward(ctx context.Context) (Outcome, error) {
	branch := s.config.Branch
	refSpec := config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, remoteName, branch))
	if err := s.fetch(ctx, &git.FetchOptions{RefSpecs: []config.RefSpec{refSpec}}); err != nil {
		return AlreadyUpToDate, err
	}

	remoteRef, err := s.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branch), true)
	if err != nil {
		return AlreadyUpToDate, fmt.Errorf("%w: %s/%s: %v", domain.ErrRevisionNotFound, remoteName, branch, err)
	}

	localName := plumbing.NewBranchReferenceName(branch)
	localRef, err := s.repo.Reference(localName, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		if err := s.repo.Storer.SetReference(plumbing.NewHashReference(localName, remoteRef.Hash())); err != nil {
			return AlreadyUpToDate, fmt.Errorf("failed to create branch %s: %w", branch, err)
		}
		s.logger.Info("created local branch", "branch", branch, "commit", remoteRef.Hash().String())
		return Updated, nil
	}
	if err != nil {
		return AlreadyUpToDate, fmt.Errorf("failed to read branch %s: %w", branch, err)
	}

	if localRef.Hash() == remoteRef.Hash() {
		s.logger.Debug("repository already up to date", "commit", localRef.Hash().String())
		return AlreadyUpToDate, nil
	}

	localCommit, err := s.repo.CommitObject(localRef.Hash())
	if err != nil {
		return AlreadyUpToDate, fmt.Errorf("failed to get local commit: %w", err)
	}
	remoteCommit, err := s.repo.CommitObject(remoteRef.Hash())
	if err != nil {
		return AlreadyUpToDate, fmt.Errorf("failed to get remote commit: %w", err)
	}
	ff, err := localCommit.IsAncestor(remoteCommit)
	if err != nil {
		return AlreadyUpToDate, fmt.Errorf("failed to compare commits: %w", err)
	}
	if !ff {
		return AlreadyUpToDate, fmt.Errorf("%w: %s has local commits not on %s/%s",
			domain.ErrDivergedLocalState, s.config.LocalPath, remoteName, branch)
	}

	attached, err := s.headOn(localName)
	if err != nil {
		return AlreadyUpToDate, err
	}
	if attached {
		worktree, err := s.repo.Worktree()
		if err != nil {
			return AlreadyUpToDate, fmt.Errorf("failed to get worktree: %w", err)
		}
		if err := worktree.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.MergeReset}); err != nil {
			return AlreadyUpToDate, fmt.Errorf("fast-forward failed: %w", err)
		}
	} else if err := s.repo.Storer.SetReference(plumbing.NewHashReference(localName, remoteRef.Hash())); err != nil {
		return AlreadyUpToDate, fmt.Errorf("failed to update branch %s: %w", branch, err)
	}

	s.logger.Info("repository updated",
		"old_commit", localRef.Hash().String(),
		"new_commit", remoteRef.Hash().String(),
		"worktree_moved", attached,
	)
	return Updated, nil
}

func (s *Store) fetch(ctx context.Context, opts *git.FetchOptions) error {
	auth, err := s.getAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}
	opts.RemoteName = remoteName
	opts.Auth = auth

	err = s.repo.FetchContext(ctx, opts)
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return s.remoteError("fetch", err)
}

// headOn reports whether HEAD is a symbolic ref to branch
func (s *Store) headOn(branch plumbing.ReferenceName) (bool, error) {
	head, err := s.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return false, fmt.Errorf("failed to read HEAD: %w", err)
	}
	return head.Type() == plumbing.SymbolicReference && head.Target() == branch, nil
}

func (s *Store) resolve(rev string) (plumbing.Hash, error) {
	candidates := []string{rev}
	if !plumbing.IsHash(rev) {
		candidates = append(candidates, "v"+rev)
	}

	var lastErr error
	for _, c := range candidates {
		hash, err := s.repo.ResolveRevision(plumbing.Revision(c))
		if err == nil {
			return *hash, nil
		}
		lastErr = err
	}
	return plumbing.ZeroHash, lastErr
}

// remoteError classifies a failed remote operation. Everything except
// user cancellation and a missing branch is treated as the network being
// unavailable, including deadline expiry.
func (s *Store) remoteError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s cancelled: %w", op, err)
	}

	var noRef git.NoMatchingRefSpecError
	if errors.As(err, &noRef) || errors.Is(err, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf("%w: branch %s of %s: %v", domain.ErrRevisionNotFound, s.config.Branch, s.config.RepoURL, err)
	}

	s.logger.Warn("remote operation failed", "op", op, "url", s.config.RepoURL, "error", err)
	return fmt.Errorf("%w: %s %s: %w", domain.ErrNetworkUnavailable, op, s.config.RepoURL, err)
}

func (s *Store) getAuth(ctx context.Context) (transport.AuthMethod, error) {
	if s.config.Auth == nil {
		return nil, nil
	}
	return s.config.Auth.AuthMethod(ctx)
}

func hasLocalChanges(status git.Status) bool {
	for _, fs := range status {
		// Build outputs such as the validator binary are untracked
		if isUntracked(fs) {
			continue
		}
		if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
			return true
		}
	}
	return false
}

func isUntracked(fs *git.FileStatus) bool {
	return fs.Worktree == git.Untracked && fs.Staging == git.Untracked
}

// untrackedFile is a worktree file git does not know about
type untrackedFile struct {
	path string
	mode os.FileMode
	data []byte
}

func (s *Store) saveUntracked(status git.Status) ([]untrackedFile, error) {
	var kept []untrackedFile
	for name, fs := range status {
		if !isUntracked(fs) {
			continue
		}
		path := filepath.Join(s.config.LocalPath, filepath.FromSlash(name))
		info, err := os.Lstat(path)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		kept = append(kept, untrackedFile{path: path, mode: info.Mode().Perm(), data: data})
	}
	return kept, nil
}

// restoreUntracked writes back saved files unless the new revision now
// tracks the same path
func (s *Store) restoreUntracked(kept []untrackedFile) error {
	for _, f := range kept {
		if current, err := os.ReadFile(f.path); err == nil {
			if !bytes.Equal(current, f.data) {
				s.logger.Warn("untracked file replaced by tracked content", "path", f.path)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(f.path, f.data, f.mode); err != nil {
			return err
		}
		if err := os.Chmod(f.path, f.mode); err != nil {
			return err
		}
	}
	return nil
}

func isEmptyDir(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
