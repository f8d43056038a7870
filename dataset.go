package minformer

import (
	"fmt"
	"io"
	"math/rand"
	"sort"

	"github.com/yargevad/filepathx"
)

// Prefetch depth for decoded windows feeding the batch assembler.
const WINDOWCHAN_SZ = 64

// Batch
// A group of windows stacked along a leading batch dimension: three
// parallel slices of equal length, one window per row. The final
// batch of an iteration may be shorter than the configured batch size.
type Batch struct {
	Tokens     []Tokens
	Targets    []Tokens
	SegmentIds []Tokens
}

type windowResult struct {
	window *Window
	err    error
}

// BatchIterator
// A pull-based iterator over the windows of every shard matching a
// glob pattern, grouped into batches. Shards are decoded on a
// prefetch goroutine; each window's token/target/segment arrays stay
// together end to end. The iterator is finite and restartable via
// Reset, which re-globs the pattern.
type BatchIterator struct {
	pattern   string
	batchSize int
	shuffle   bool
	windows   chan windowResult
	done      chan struct{}
}

// NewBatchIterator globs `pattern` (`**` is supported) and prepares an
// iterator yielding batches of `batchSize` windows. With `shuffle`
// set, shard order and window order within each shard are randomized;
// windows themselves are never torn apart.
func NewBatchIterator(
	pattern string,
	batchSize int,
	shuffle bool,
) (*BatchIterator, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf(
			"batch iterator: batch size must be positive, got %d",
			batchSize)
	}
	iterator := &BatchIterator{
		pattern:   pattern,
		batchSize: batchSize,
		shuffle:   shuffle,
	}
	if err := iterator.Reset(); err != nil {
		return nil, err
	}
	return iterator, nil
}

// Reset restarts iteration from a fresh glob of the shard pattern.
func (iterator *BatchIterator) Reset() error {
	paths, err := filepathx.Glob(iterator.pattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no shard files match %s", iterator.pattern)
	}
	sort.Strings(paths)
	if iterator.shuffle {
		rand.Shuffle(len(paths), func(i, j int) {
			paths[i], paths[j] = paths[j], paths[i]
		})
	}
	iterator.Stop()
	done := make(chan struct{})
	windows := make(chan windowResult, WINDOWCHAN_SZ)
	go func() {
		defer close(windows)
		for _, path := range paths {
			shard, readErr := ReadShard(path)
			if readErr != nil {
				select {
				case windows <- windowResult{nil, readErr}:
				case <-done:
				}
				return
			}
			if iterator.shuffle {
				rand.Shuffle(len(shard), func(i, j int) {
					shard[i], shard[j] = shard[j], shard[i]
				})
			}
			for _, window := range shard {
				select {
				case windows <- windowResult{window, nil}:
				case <-done:
					return
				}
			}
		}
	}()
	iterator.done = done
	iterator.windows = windows
	return nil
}

// Next
// Returns the next batch, or io.EOF once every matched shard has been
// consumed. A trailing batch smaller than the batch size is emitted
// rather than dropped. Decode errors, including ErrCorruptShard,
// terminate the iteration.
func (iterator *BatchIterator) Next() (*Batch, error) {
	batch := &Batch{
		Tokens:     make([]Tokens, 0, iterator.batchSize),
		Targets:    make([]Tokens, 0, iterator.batchSize),
		SegmentIds: make([]Tokens, 0, iterator.batchSize),
	}
	for len(batch.Tokens) < iterator.batchSize {
		result, more := <-iterator.windows
		if !more {
			break
		}
		if result.err != nil {
			return nil, result.err
		}
		batch.Tokens = append(batch.Tokens, result.window.Tokens)
		batch.Targets = append(batch.Targets, result.window.Targets)
		batch.SegmentIds = append(batch.SegmentIds,
			result.window.SegmentIds)
	}
	if len(batch.Tokens) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Stop releases the prefetch goroutine. Safe to call more than once;
// Reset calls it implicitly.
func (iterator *BatchIterator) Stop() {
	if iterator.done != nil {
		close(iterator.done)
		iterator.done = nil
	}
}
