package vcsreader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func initRepoWithCommits(t *testing.T, files [][2]string) (dir string, hashes []string) {
	t.Helper()
	dir = t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
	for i, pair := range files {
		path, content := pair[0], pair[1]
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err := wt.Add(path)
		require.NoError(t, err)
		sig.When = sig.When.Add(time.Duration(i) * time.Minute)
		hash, err := wt.Commit("commit "+path, &git.CommitOptions{Author: sig})
		require.NoError(t, err)
		hashes = append(hashes, hash.String())
	}
	return dir, hashes
}

func TestReader_WalkBackward_VisitsNewestFirst(t *testing.T) {
	dir, hashes := initRepoWithCommits(t, [][2]string{
		{"a.go", "package a"},
		{"b.go", "package b"},
		{"c.go", "package c"},
	})

	r, err := Open(dir)
	require.NoError(t, err)

	var visited []string
	err = r.WalkBackward(10, "", func(c Commit) error {
		visited = append(visited, c.Hash)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, visited, 3)
	require.Equal(t, hashes[2], visited[0], "walk must be newest-first")
	require.Equal(t, hashes[0], visited[2])
}

func TestReader_WalkBackward_StopsAtResumeHash(t *testing.T) {
	dir, hashes := initRepoWithCommits(t, [][2]string{
		{"a.go", "package a"},
		{"b.go", "package b"},
		{"c.go", "package c"},
	})

	r, err := Open(dir)
	require.NoError(t, err)

	var visited []string
	err = r.WalkBackward(10, hashes[1], func(c Commit) error {
		visited = append(visited, c.Hash)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{hashes[2]}, visited, "walk must stop before revisiting the resume hash")
}

func TestReader_WalkBackward_RespectsMaxCommits(t *testing.T) {
	dir, _ := initRepoWithCommits(t, [][2]string{
		{"a.go", "package a"},
		{"b.go", "package b"},
		{"c.go", "package c"},
	})

	r, err := Open(dir)
	require.NoError(t, err)

	var visited []string
	err = r.WalkBackward(2, "", func(c Commit) error {
		visited = append(visited, c.Hash)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, visited, 2)
}

func TestReader_WalkBackward_ReportsChangedFiles(t *testing.T) {
	dir, _ := initRepoWithCommits(t, [][2]string{
		{"a.go", "package a"},
		{"b.go", "package b"},
	})

	r, err := Open(dir)
	require.NoError(t, err)

	var commits []Commit
	err = r.WalkBackward(10, "", func(c Commit) error {
		commits = append(commits, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, commits, 2)
	require.Equal(t, []string{"b.go"}, commits[0].Files)
	require.Equal(t, []string{"a.go"}, commits[1].Files)
	require.False(t, commits[0].IsMerge)
}

func TestReader_Head_ReturnsCurrentCommit(t *testing.T) {
	dir, hashes := initRepoWithCommits(t, [][2]string{{"a.go", "package a"}})
	r, err := Open(dir)
	require.NoError(t, err)

	head, err := r.Head()
	require.NoError(t, err)
	require.Equal(t, hashes[0], head)
}

func TestReader_CommitInfo_ReadsByHash(t *testing.T) {
	dir, hashes := initRepoWithCommits(t, [][2]string{{"a.go", "package a"}})
	r, err := Open(dir)
	require.NoError(t, err)

	info, err := r.CommitInfo(hashes[0])
	require.NoError(t, err)
	require.Equal(t, hashes[0], info.Hash)
	require.Equal(t, "tester@example.com", info.Author)
}
