package minformer

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// makeWindow builds a full window whose tokens are derived from a
// seed, so windows are distinguishable after a read-back.
func makeWindow(sequenceLength int, seed Token) *Window {
	window := NewWindow(sequenceLength)
	for idx := range window.Tokens {
		window.Tokens[idx] = seed + Token(idx)
		window.SegmentIds[idx] = 1
	}
	return window
}

func TestShardRotation(t *testing.T) {
	dir := t.TempDir()
	quota := 4
	writer, err := NewShardWriter(dir, quota)
	assert.NoError(t, err)

	// 2Q+1 windows must land in exactly three shards: Q, Q, and 1.
	for idx := 0; idx < 2*quota+1; idx++ {
		assert.NoError(t, writer.WriteWindow(makeWindow(8, Token(idx))))
	}
	assert.NoError(t, writer.Close())

	counts := []int{quota, quota, 1}
	for shardIdx, expected := range counts {
		windows, readErr := ReadShard(ShardPath(dir, shardIdx))
		assert.NoError(t, readErr)
		assert.Len(t, windows, expected, "shard %d", shardIdx)
	}
	_, statErr := os.Stat(ShardPath(dir, 3))
	assert.True(t, os.IsNotExist(statErr))
}

func TestShardQuotaExactMultiple(t *testing.T) {
	dir := t.TempDir()
	quota := 3
	writer, err := NewShardWriter(dir, quota)
	assert.NoError(t, err)
	for idx := 0; idx < 2*quota; idx++ {
		assert.NoError(t, writer.WriteWindow(makeWindow(4, Token(idx))))
	}
	assert.NoError(t, writer.Close())

	// No empty trailing shard.
	_, statErr := os.Stat(ShardPath(dir, 2))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewShardWriter(dir, 16)
	assert.NoError(t, err)

	written := []*Window{
		makeWindow(8, 100),
		makeWindow(8, 500),
	}
	// A partially filled window with trailing padding.
	partial := NewWindow(8)
	partial.Tokens[0], partial.Tokens[1] = 7, 9
	partial.SegmentIds[0], partial.SegmentIds[1] = 1, 1
	written = append(written, partial)

	for _, window := range written {
		assert.NoError(t, writer.WriteWindow(window))
	}
	assert.NoError(t, writer.Close())

	windows, readErr := ReadShard(ShardPath(dir, 0))
	assert.NoError(t, readErr)
	assert.Len(t, windows, len(written))
	for idx, window := range windows {
		assert.Equal(t, written[idx].Tokens, window.Tokens)
		assert.Equal(t, written[idx].SegmentIds, window.SegmentIds)
		// Targets are the next-token shift with the final position
		// replicating the last token.
		for pos := 0; pos < len(window.Tokens)-1; pos++ {
			assert.Equal(t, window.Tokens[pos+1], window.Targets[pos])
		}
		assert.Equal(t, window.Tokens[len(window.Tokens)-1],
			window.Targets[len(window.Targets)-1])
	}
}

func TestShardReaderEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "record_0.bin")
	assert.NoError(t, os.WriteFile(path, nil, 0755))
	reader, err := OpenShard(path)
	assert.NoError(t, err)
	_, nextErr := reader.Next()
	assert.Equal(t, io.EOF, nextErr)
	assert.NoError(t, reader.Close())
}

func TestCorruptShardTruncatedRecord(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewShardWriter(dir, 16)
	assert.NoError(t, err)
	assert.NoError(t, writer.WriteWindow(makeWindow(8, 1)))
	assert.NoError(t, writer.WriteWindow(makeWindow(8, 2)))
	assert.NoError(t, writer.Close())

	path := ShardPath(dir, 0)
	stat, statErr := os.Stat(path)
	assert.NoError(t, statErr)
	assert.NoError(t, os.Truncate(path, stat.Size()-3))

	windows, readErr := ReadShard(path)
	assert.Nil(t, windows)
	assert.ErrorIs(t, readErr, ErrCorruptShard)
}

func TestCorruptShardGarbageHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "record_0.bin")
	// A payload length that is not a multiple of the three arrays.
	assert.NoError(t, os.WriteFile(path,
		[]byte{7, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7}, 0755))
	_, readErr := ReadShard(path)
	assert.ErrorIs(t, readErr, ErrCorruptShard)
}

func TestRetokenizeWindow(t *testing.T) {
	encoder := NewCharEncoder()
	collector := &windowCollector{}
	packer, err := NewPacker(encoder, collector, 16)
	assert.NoError(t, err)
	assert.NoError(t, packer.IngestLine("hi"))
	assert.NoError(t, packer.IngestLine("world"))
	assert.NoError(t, packer.Flush())
	assert.Len(t, collector.windows, 1)

	segments, retokErr := Retokenize(collector.windows[0], encoder)
	assert.NoError(t, retokErr)
	assert.Equal(t, []string{"hi\n", "world\n"}, segments)
}

func TestRetokenizeUnknownInsideSegment(t *testing.T) {
	encoder := NewCharEncoder()
	window := NewWindow(4)
	window.Tokens[0] = encoder.CharToId['a']
	window.Tokens[1] = UnknownToken
	window.Tokens[2] = encoder.CharToId['b']
	window.SegmentIds[0] = 1
	window.SegmentIds[1] = 1
	window.SegmentIds[2] = 1

	segments, err := Retokenize(window, encoder)
	assert.NoError(t, err)
	assert.Equal(t, []string{"ab"}, segments)
}

func TestRetokenizeMalformedSegment(t *testing.T) {
	encoder := NewCharEncoder()
	window := NewWindow(4)
	window.Tokens = Tokens{1, 2, 3, 4}
	// Segment 1 appears in two separated runs.
	window.SegmentIds = Tokens{1, 0, 1, 0}
	_, err := Retokenize(window, encoder)
	assert.ErrorIs(t, err, ErrMalformedSegment)
}

func TestRetokenizeSegmentsAscending(t *testing.T) {
	encoder := NewCharEncoder()
	window := NewWindow(6)
	text := "abcdef"
	copy(window.Tokens, *encoder.Encode(&text))
	window.SegmentIds = Tokens{1, 1, 2, 2, 3, 3}
	segments, err := Retokenize(window, encoder)
	assert.NoError(t, err)
	assert.Equal(t, []string{"ab", "cd", "ef"}, segments)
}

func TestPackerToShardPipeline(t *testing.T) {
	dir := t.TempDir()
	encoder := NewCharEncoder()
	writer, err := NewShardWriter(dir, 2)
	assert.NoError(t, err)
	packer, packerErr := NewPacker(encoder, writer, 8)
	assert.NoError(t, packerErr)

	lines := []string{"first", "second", "third", "fourth"}
	for _, line := range lines {
		assert.NoError(t, packer.IngestLine(line))
	}
	assert.NoError(t, packer.Flush())
	assert.NoError(t, writer.Close())

	reconstructed := make([]string, 0, len(lines))
	for shardIdx := 0; shardIdx <= writer.ShardIndex(); shardIdx++ {
		windows, readErr := ReadShard(ShardPath(dir, shardIdx))
		assert.NoError(t, readErr)
		for _, window := range windows {
			segments, retokErr := Retokenize(window, encoder)
			assert.NoError(t, retokErr)
			reconstructed = append(reconstructed, segments...)
		}
	}
	assert.Len(t, reconstructed, len(lines))
	for idx, line := range lines {
		assert.Equal(t, line+"\n", reconstructed[idx])
	}
}
