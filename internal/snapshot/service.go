// Package snapshot records what a plan looked like at export time. Each
// plan gets its own on-disk git repository; every export commits the
// assembled payload so any delivered document can be traced back to the
// exact content it was rendered from.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const payloadFile = "plan.json"

// SectionSnapshot is one section as it was assembled for export.
type SectionSnapshot struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Order   int    `json:"order"`
}

// Payload is the assembled plan content committed per export.
type Payload struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Sections    []SectionSnapshot `json:"sections"`
}

// CommitInfo describes one recorded snapshot.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Service manages per-plan snapshot repositories under baseDir.
type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) repoPath(planID string) string {
	return filepath.Join(s.baseDir, planID)
}

func (s *Service) planLock(planID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[planID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[planID] = lock
	}
	return lock
}

// Save commits the payload to the plan's snapshot repository, creating the
// repository on first use, and returns the commit hash.
func (s *Service) Save(planID string, payload Payload, author, message string) (string, error) {
	lock := s.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(planID)
	if err != nil {
		return "", err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.repoPath(planID), payloadFile), append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write payload: %w", err)
	}
	if _, err := worktree.Add(payloadFile); err != nil {
		return "", fmt.Errorf("git add payload: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		// Re-exporting unchanged content still records a snapshot.
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: author + "@snapshots.sqordia.local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit snapshot: %w", err)
	}
	return hash.String(), nil
}

// History lists the plan's snapshots, newest first, up to limit entries.
func (s *Service) History(planID string, limit int) ([]CommitInfo, error) {
	lock := s.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(planID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	if limit <= 0 {
		limit = 50
	}
	var commits []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if len(commits) >= limit {
			return errStopIteration
		}
		commits = append(commits, CommitInfo{
			Hash:    c.Hash.String(),
			Author:  c.Author.Name,
			Message: c.Message,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return commits, nil
}

var errStopIteration = errors.New("stop iteration")

func (s *Service) ensureRepo(planID string) (*git.Repository, error) {
	path := s.repoPath(planID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}
