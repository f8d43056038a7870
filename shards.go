package minformer

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Record framing: a uint32 little-endian payload length, then three
// equal-length token arrays (tokens, targets, segment ids). The
// length prefix makes records self-delimiting so a reader can detect
// a truncated trailing record instead of misreading it as a valid
// all-zero window.
const recordHeaderSize = 4

// ShardPath returns the deterministic file path for a shard index
// within a dataset directory.
func ShardPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("record_%d.bin", index))
}

// ShardWriter
// Appends packed windows to the current shard file, rotating to a new
// file once the shard has received its quota of records. Shard
// indices start at 0 and increase monotonically; the final shard may
// be partially filled. Once closed, shard files are immutable.
type ShardWriter struct {
	dir             string
	recordsPerShard int
	shardIndex      int
	recordsInShard  int
	file            *os.File

	TotalWindows int
	TotalTokens  int
}

// NewShardWriter opens shard 0 in `dir`. File creation failures are
// returned immediately; there is no partial-shard fallback.
func NewShardWriter(dir string, recordsPerShard int) (*ShardWriter, error) {
	if recordsPerShard <= 0 {
		return nil, fmt.Errorf(
			"shard writer: records per shard must be positive, got %d",
			recordsPerShard)
	}
	writer := &ShardWriter{
		dir:             dir,
		recordsPerShard: recordsPerShard,
	}
	if err := writer.openShard(0); err != nil {
		return nil, err
	}
	return writer, nil
}

func (writer *ShardWriter) openShard(index int) error {
	file, err := os.OpenFile(ShardPath(writer.dir, index),
		os.O_TRUNC|os.O_RDWR|os.O_CREATE, 0755)
	if err != nil {
		return err
	}
	writer.file = file
	writer.shardIndex = index
	writer.recordsInShard = 0
	return nil
}

// ShardIndex returns the index of the shard currently being written.
func (writer *ShardWriter) ShardIndex() int {
	return writer.shardIndex
}

// encodeRecord serializes one window into a framed record.
func encodeRecord(window *Window) []byte {
	payload := 3 * len(window.Tokens) * TokenSize
	record := make([]byte, 0, recordHeaderSize+payload)
	var header [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(payload))
	record = append(record, header[:]...)
	record = append(record, *window.Tokens.ToBin()...)
	record = append(record, *window.Targets.ToBin()...)
	record = append(record, *window.SegmentIds.ToBin()...)
	return record
}

// WriteWindow
// Serializes one window and appends it to the current shard, deriving
// the targets if the packer has not populated them. The record is
// written with a single Write call so that a failed write surfaces as
// an error rather than a silently truncated record.
func (writer *ShardWriter) WriteWindow(window *Window) error {
	if len(window.Tokens) != len(window.SegmentIds) {
		return fmt.Errorf(
			"shard writer: token and segment id lengths differ (%d != %d)",
			len(window.Tokens), len(window.SegmentIds))
	}
	if window.Targets == nil {
		window.FillTargets()
	}
	// Rotation is deferred until the next record arrives, so an input
	// that is an exact multiple of the quota never leaves an empty
	// trailing shard file.
	if writer.recordsInShard == writer.recordsPerShard {
		if err := writer.file.Close(); err != nil {
			return err
		}
		if err := writer.openShard(writer.shardIndex + 1); err != nil {
			return err
		}
	}
	if _, err := writer.file.Write(encodeRecord(window)); err != nil {
		return err
	}
	writer.recordsInShard += 1
	writer.TotalWindows += 1
	writer.TotalTokens += len(window.Tokens)
	return nil
}

// Close closes the current shard file. Call after the final Flush of
// the owning Packer.
func (writer *ShardWriter) Close() error {
	return writer.file.Close()
}
