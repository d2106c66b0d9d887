package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"aether/internal/aethererr"
	"aether/internal/logging"
)

// defaultIndexConcurrency bounds how many files are parsed/inferred/embedded
// concurrently during a batch pass. Unbounded fan-out is explicitly
// forbidden: the bound exists so a large repository's inference and
// embedding requests don't overrun rate limits or local model capacity.
const defaultIndexConcurrency = 8

// IndexPaths runs IndexFile over every path in paths with bounded
// concurrency (golang.org/x/sync/errgroup.Group.SetLimit), reading each
// file relative to the orchestrator's workspace directory. A single file's
// parse or store failure is logged and excluded from the result slice
// rather than aborting the whole batch — one bad file must never block
// indexing of the rest.
func (o *Orchestrator) IndexPaths(ctx context.Context, paths []string) []*IndexResult {
	concurrency := defaultIndexConcurrency

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var results []*IndexResult

	for _, relPath := range paths {
		relPath := relPath
		g.Go(func() error {
			content, err := os.ReadFile(filepath.Join(o.workspaceDir, relPath))
			if err != nil {
				logging.Orchestrator("read %s failed: %v", relPath, err)
				return nil // do not abort the batch for one unreadable file
			}
			result, err := o.IndexFile(gctx, relPath, content)
			if err != nil {
				logging.Orchestrator("index %s failed: %v", relPath, err)
				return nil
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	// g.Wait's error is always nil here since every Go func swallows its
	// own error into a log line; batch indexing has no single failure mode
	// worth propagating to the caller.
	_ = g.Wait()
	return results
}

// DeleteFile removes a file's symbols, sir, edges, and test intents — used
// when a watched file is deleted rather than changed. Graph edges recorded
// for the file are dropped in the same pass; the file's graph nodes are not
// removed.
func (o *Orchestrator) DeleteFile(path string) error {
	lock := o.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := o.relStore.ApplyFileIndex(path, nil, nil, nil); err != nil {
		return fmt.Errorf("%w: delete file index for %s: %v", aethererr.ErrStoreTransactional, path, err)
	}
	if o.graphStore != nil {
		if err := o.graphStore.DeleteEdgesForFile(path); err != nil {
			return err
		}
	}
	return nil
}
