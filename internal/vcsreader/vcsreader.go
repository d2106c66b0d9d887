// Package vcsreader is a thin collaborator over go-git, walking a
// repository's commit history the way internal/analysis's coupling miner
// and drift analysis need it: newest-first, merge-aware, resumable. The
// orchestrator reads HEAD through it to stamp SIR history rows.
package vcsreader

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"aether/internal/aethererr"
)

// Commit is one walked commit, normalized for mining: merge commits carry
// no Files (the caller skips them outright). The reader applies no
// file-count cap; Files lists every file the commit changed.
type Commit struct {
	Hash    string
	Author  string
	When    time.Time
	IsMerge bool
	Files   []string
}

// Reader walks one on-disk repository's history.
type Reader struct {
	repo *git.Repository
}

// Open opens the git repository containing (or at) path, searching parent
// directories for .git the way `git` itself does.
func Open(path string) (*Reader, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: open git repository at %s: %v", aethererr.ErrIOFailure, path, err)
	}
	return &Reader{repo: repo}, nil
}

// Head returns the current HEAD commit hash, or "" if the repository has no
// commits yet (a freshly initialized, empty repository).
func (r *Reader) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("%w: resolve HEAD: %v", aethererr.ErrIOFailure, err)
	}
	return ref.Hash().String(), nil
}

// WalkBackward walks at most maxCommits commits backward from HEAD,
// newest-first, calling visit for each. If stopAtHash is non-empty, the
// walk stops (without revisiting it) once stopAtHash is reached — the
// incremental-mining resume point: a prior run's recorded head. Merge
// commits are reported with IsMerge true and a nil Files slice; the caller
// decides whether to skip them (the coupling miner does).
func (r *Reader) WalkBackward(maxCommits int, stopAtHash string, visit func(Commit) error) error {
	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil
		}
		return fmt.Errorf("%w: resolve HEAD: %v", aethererr.ErrIOFailure, err)
	}

	commitIter, err := r.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return fmt.Errorf("%w: open commit log: %v", aethererr.ErrIOFailure, err)
	}
	defer commitIter.Close()

	scanned := 0
	walkErr := commitIter.ForEach(func(c *object.Commit) error {
		if scanned >= maxCommits {
			return storer.ErrStop
		}
		hash := c.Hash.String()
		if stopAtHash != "" && hash == stopAtHash {
			return storer.ErrStop
		}

		isMerge := len(c.ParentHashes) > 1
		commit := Commit{Hash: hash, Author: c.Author.Email, When: c.Author.When, IsMerge: isMerge}

		if !isMerge {
			stats, statErr := c.Stats()
			if statErr != nil {
				return fmt.Errorf("%w: compute stats for commit %s: %v", aethererr.ErrIOFailure, hash, statErr)
			}
			files := make([]string, 0, len(stats))
			for _, fs := range stats {
				files = append(files, fs.Name)
			}
			commit.Files = files
		}

		scanned++
		return visit(commit)
	})
	if walkErr != nil && !errors.Is(walkErr, storer.ErrStop) {
		return walkErr
	}
	return nil
}

// CommitInfo returns one commit's metadata (hash, author, time, merge
// flag) by hash. Files is not filled in. Nothing outside this package's
// tests calls it.
func (r *Reader) CommitInfo(hash string) (Commit, error) {
	h := plumbing.NewHash(hash)
	c, err := r.repo.CommitObject(h)
	if err != nil {
		return Commit{}, fmt.Errorf("%w: read commit %s: %v", aethererr.ErrIOFailure, hash, err)
	}
	return Commit{Hash: c.Hash.String(), Author: c.Author.Email, When: c.Author.When, IsMerge: len(c.ParentHashes) > 1}, nil
}
