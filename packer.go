package minformer

import (
	"bytes"
	"fmt"
	"io"
)

// Read chunk size for IngestReader. Lines that straddle a chunk
// boundary are reassembled in the carry buffer before tokenizing.
const INGEST_CHUNK_SZ = 8192

// Window
// One packed training example: a fixed-width run of token ids and the
// parallel segment ids marking which positions belong to which source
// line. Segment id 0 marks unfilled padding. Targets are the
// next-token shift; they are derived at write time and only populated
// on windows that came back from a shard.
type Window struct {
	Tokens     Tokens
	Targets    Tokens
	SegmentIds Tokens
}

// NewWindow returns an empty zero-filled window of the given width.
func NewWindow(sequenceLength int) *Window {
	return &Window{
		Tokens:     make(Tokens, sequenceLength),
		SegmentIds: make(Tokens, sequenceLength),
	}
}

// FillTargets derives the prediction targets from the tokens:
// targets[i] = tokens[i+1], with the final position replicating the
// last token.
func (window *Window) FillTargets() {
	window.Targets = make(Tokens, len(window.Tokens))
	copy(window.Targets, window.Tokens[1:])
	if len(window.Tokens) > 0 {
		window.Targets[len(window.Targets)-1] =
			window.Tokens[len(window.Tokens)-1]
	}
}

// WindowWriter receives flushed windows from a Packer. *ShardWriter is
// the production implementation.
type WindowWriter interface {
	WriteWindow(window *Window) error
}

// Packer
// Consumes a stream of lines, tokenizes each, and packs the tokens
// into fixed-width windows. A line is only packed when it fits
// entirely within the current window's remaining capacity; lines are
// never split across windows. Packing state has a single owner and is
// strictly sequential over the input.
type Packer struct {
	encoder        *CharEncoder
	writer         WindowWriter
	sequenceLength int

	// Delimiter is appended to every logical line before tokenizing,
	// rejoining what the line-splitting of the underlying reader
	// stripped.
	Delimiter string

	window         *Window
	fillCursor     int
	segmentCounter Token
}

// NewPacker returns a Packer that flushes filled windows of
// `sequenceLength` tokens to `writer`, appending "\n" to each line.
func NewPacker(
	encoder *CharEncoder,
	writer WindowWriter,
	sequenceLength int,
) (*Packer, error) {
	if sequenceLength < 2 {
		return nil, fmt.Errorf(
			"packer: sequence length %d is too small", sequenceLength)
	}
	return &Packer{
		encoder:        encoder,
		writer:         writer,
		sequenceLength: sequenceLength,
		Delimiter:      "\n",
		window:         NewWindow(sequenceLength),
		segmentCounter: 1,
	}, nil
}

// IngestLine
// Tokenizes one logical line (plus the configured delimiter) and packs
// it. If the line does not fit in the current window's remaining
// capacity the window is flushed first and the line retried against a
// fresh window. A line longer than a whole window is clipped to
// sequenceLength-1 tokens, packed alone, and its window emitted
// immediately; the clipped remainder is dropped, never carried over.
func (packer *Packer) IngestLine(line string) error {
	text := line + packer.Delimiter
	tokens := *packer.encoder.Encode(&text)
	if len(tokens) > packer.sequenceLength {
		return packer.ingestOversized(tokens)
	}
	if packer.fillCursor+len(tokens) > packer.sequenceLength {
		if err := packer.Flush(); err != nil {
			return err
		}
	}
	packer.pack(tokens)
	return nil
}

// pack copies tokens into the current window at the fill cursor and
// stamps their positions with the current segment id. The caller has
// already established that they fit.
func (packer *Packer) pack(tokens Tokens) {
	copy(packer.window.Tokens[packer.fillCursor:], tokens)
	end := packer.fillCursor + len(tokens)
	for idx := packer.fillCursor; idx < end; idx++ {
		packer.window.SegmentIds[idx] = packer.segmentCounter
	}
	packer.fillCursor = end
	packer.segmentCounter += 1
}

// ingestOversized handles a line that can never fit in one window:
// any partial window in progress is flushed, then the clipped line is
// packed alone as segment 1 and flushed immediately without
// accumulating further lines.
func (packer *Packer) ingestOversized(tokens Tokens) error {
	if packer.fillCursor > 0 {
		if err := packer.Flush(); err != nil {
			return err
		}
	}
	packer.pack(tokens[:packer.sequenceLength-1])
	return packer.Flush()
}

// IngestReader
// Streams a reader through the packer: reads fixed-size chunks,
// carries any trailing line fragment across chunk boundaries, and
// tokenizes only complete lines. A non-empty fragment at EOF is
// treated as a final line.
func (packer *Packer) IngestReader(reader io.Reader) error {
	buf := make([]byte, INGEST_CHUNK_SZ)
	carry := make([]byte, 0, INGEST_CHUNK_SZ)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			carry = append(carry, buf[:n]...)
			for {
				nl := bytes.IndexByte(carry, '\n')
				if nl < 0 {
					break
				}
				if err := packer.IngestLine(string(carry[:nl])); err != nil {
					return err
				}
				carry = carry[nl+1:]
			}
		}
		if readErr == io.EOF {
			if len(carry) > 0 {
				return packer.IngestLine(string(carry))
			}
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// Flush
// Emits the current window as-is, zero padding included, and resets
// the packing state: fresh zero-filled buffers, fill cursor 0, segment
// counter back to 1. Segment ids are only unique within a window. An
// empty window is never emitted.
func (packer *Packer) Flush() error {
	if packer.fillCursor == 0 {
		return nil
	}
	window := packer.window
	packer.window = NewWindow(packer.sequenceLength)
	packer.fillCursor = 0
	packer.segmentCounter = 1
	return packer.writer.WriteWindow(window)
}
