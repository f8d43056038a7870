package minformer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"
)

// ErrCorruptShard is returned when a shard file ends mid-record. A
// short trailing record is corruption, never a valid empty window.
var ErrCorruptShard = errors.New("corrupt shard: truncated record")

// ErrMalformedSegment is returned when a window's segment ids do not
// form contiguous runs. The packer only ever appends segments
// contiguously, so a gap means the shard came from a foreign or
// damaged source.
var ErrMalformedSegment = errors.New(
	"malformed segment: non-contiguous segment run")

// ShardReader
// Reads the windows of one shard file in record order. The file is
// memory-mapped; shard files are immutable once written, so many
// readers may map the same shard concurrently.
type ShardReader struct {
	path   string
	file   *os.File
	data   mmap.MMap
	offset int
}

// OpenShard maps a shard file for reading.
func OpenShard(path string) (*ShardReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	reader := &ShardReader{path: path, file: file}
	// A zero-length shard cannot be mapped, but is a valid empty file.
	if stat.Size() > 0 {
		data, mmapErr := mmap.Map(file, mmap.RDONLY, 0)
		if mmapErr != nil {
			file.Close()
			return nil, mmapErr
		}
		reader.data = data
	}
	return reader, nil
}

// Next
// Decodes the next record, returning io.EOF at a clean end of file and
// ErrCorruptShard if the file ends partway through a record.
func (reader *ShardReader) Next() (*Window, error) {
	remaining := len(reader.data) - reader.offset
	if remaining == 0 {
		return nil, io.EOF
	}
	if remaining < recordHeaderSize {
		return nil, fmt.Errorf("%w: %s", ErrCorruptShard, reader.path)
	}
	payload := int(binary.LittleEndian.Uint32(
		reader.data[reader.offset:]))
	if payload == 0 || payload%(3*TokenSize) != 0 ||
		remaining-recordHeaderSize < payload {
		return nil, fmt.Errorf("%w: %s", ErrCorruptShard, reader.path)
	}
	sequenceLength := payload / (3 * TokenSize)
	body := reader.data[reader.offset+recordHeaderSize:]
	arrayBytes := sequenceLength * TokenSize
	tokensBin := []byte(body[:arrayBytes])
	targetsBin := []byte(body[arrayBytes : 2*arrayBytes])
	segmentsBin := []byte(body[2*arrayBytes : 3*arrayBytes])
	window := &Window{
		Tokens:     *TokensFromBin(&tokensBin),
		Targets:    *TokensFromBin(&targetsBin),
		SegmentIds: *TokensFromBin(&segmentsBin),
	}
	reader.offset += recordHeaderSize + payload
	return window, nil
}

// Close unmaps and closes the shard file.
func (reader *ShardReader) Close() error {
	if reader.data != nil {
		if err := reader.data.Unmap(); err != nil {
			reader.file.Close()
			return err
		}
	}
	return reader.file.Close()
}

// ReadShard decodes every window of one shard file.
func ReadShard(path string) ([]*Window, error) {
	reader, err := OpenShard(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	windows := make([]*Window, 0)
	for {
		window, err := reader.Next()
		if err == io.EOF {
			return windows, nil
		}
		if err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}
}

// Retokenize
// Reconstructs the original text spans of a window, one string per
// distinct nonzero segment id, in ascending segment id order. Each
// segment must occupy a single contiguous run of positions; unknown
// token ids within a segment decode to the empty glyph rather than
// failing.
func Retokenize(window *Window, encoder *CharEncoder) ([]string, error) {
	type span struct {
		first int
		last  int
	}
	spans := make(map[Token]*span)
	for idx, id := range window.SegmentIds {
		if id == 0 {
			continue
		}
		if existing, ok := spans[id]; ok {
			existing.last = idx
		} else {
			spans[id] = &span{first: idx, last: idx}
		}
	}
	ids := make([]Token, 0, len(spans))
	for id := range spans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	segments := make([]string, 0, len(ids))
	for _, id := range ids {
		segment := spans[id]
		for idx := segment.first; idx <= segment.last; idx++ {
			if window.SegmentIds[idx] != id {
				return nil, fmt.Errorf("%w: segment %d",
					ErrMalformedSegment, id)
			}
		}
		run := window.Tokens[segment.first : segment.last+1]
		segments = append(segments, encoder.Decode(&run))
	}
	return segments, nil
}
