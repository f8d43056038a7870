package main

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"
)

// SanitizedReader
// Streams text through whitespace cleanup: Windows `\r` is dropped,
// runs of newlines collapse to one, escaped `\n` sequences become real
// newlines, tabs become spaces, and per-line leading/trailing/extra
// spaces are stripped. Cleanup happens a block at a time on a
// background goroutine so the consumer reads sanitized bytes without
// stalling.
type SanitizedReader struct {
	blockSize       int
	lastRune        *rune
	whitespaceRegex *regexp.Regexp
	reader          *bufio.Reader
	currBlock       **bytes.Buffer
	accumulator     *[]rune
	accumulatorIdx  *int
	moreBlocks      chan *bytes.Buffer
}

// nextBlock accumulates runes from the underlying reader, applying the
// rune-level rewrite rules, and returns one sanitized block, or nil
// once the input is exhausted.
func (sanitized SanitizedReader) nextBlock() *bytes.Buffer {
	acc := *sanitized.accumulator
	idx := *sanitized.accumulatorIdx
	var text string
	for {
		if idx > sanitized.blockSize {
			text = string(acc[:sanitized.blockSize])
			acc[0] = acc[idx-1]
			*sanitized.accumulatorIdx = 1
			break
		}
		r, size, _ := sanitized.reader.ReadRune()
		if size == 0 && idx == 0 {
			// No valid rune and an empty accumulator, so we're done.
			return nil
		} else if size == 0 {
			// Input exhausted with runes still accumulated; flush.
			text = string(acc[:idx])
			*sanitized.accumulatorIdx = 0
			break
		} else if r == '\r' {
			// Silently drop Windows `\r`.
		} else if r == '\n' && *sanitized.lastRune == '\n' {
			// Drop additional newlines.
		} else if r == 'n' && *sanitized.lastRune == '\\' {
			// Replace escaped `\n` with a real newline.
			acc[idx-1] = '\n'
		} else if r == ':' && *sanitized.lastRune == ' ' {
			// Strip the space preceding a colon.
			acc[idx-1] = ':'
		} else if r == '\t' {
			acc[idx] = ' '
			idx++
		} else {
			acc[idx] = r
			idx++
		}
		if idx > 0 {
			*sanitized.lastRune = acc[idx-1]
		}
	}
	lines := strings.Split(text, "\n")
	for lineIdx, line := range lines {
		line = sanitized.whitespaceRegex.ReplaceAllString(line, " ")
		lines[lineIdx] = strings.TrimSpace(line)
	}
	return bytes.NewBufferString(strings.Join(lines, "\n"))
}

// Read implements io.Reader over the sanitized block stream.
func (sanitized SanitizedReader) Read(p []byte) (int, error) {
	for {
		if *sanitized.currBlock == nil {
			return 0, io.EOF
		}
		n, err := (*sanitized.currBlock).Read(p)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			newBlock, ok := <-sanitized.moreBlocks
			if !ok {
				*sanitized.currBlock = nil
				return 0, io.EOF
			}
			*sanitized.currBlock = newBlock
			continue
		}
		return n, err
	}
}

// CreateTextSanitizer wraps a raw reader in whitespace sanitization.
func CreateTextSanitizer(handle io.Reader) SanitizedReader {
	extraWhiteSpace := regexp.MustCompile("[[:space:]]+")
	accumulator := make([]rune, 32769)
	lastRune := rune(0)
	accumulatorIdx := 0
	emptyBlock := bytes.NewBufferString("")
	sanitizer := SanitizedReader{
		blockSize:       32768,
		lastRune:        &lastRune,
		whitespaceRegex: extraWhiteSpace,
		reader:          bufio.NewReader(handle),
		accumulator:     &accumulator,
		accumulatorIdx:  &accumulatorIdx,
		currBlock:       &emptyBlock,
		moreBlocks:      make(chan *bytes.Buffer, 1),
	}
	firstBlock := sanitizer.nextBlock()
	sanitizer.currBlock = &firstBlock
	go func() {
		for {
			newBlock := sanitizer.nextBlock()
			if newBlock == nil {
				close(sanitizer.moreBlocks)
				break
			}
			sanitizer.moreBlocks <- newBlock
		}
	}()
	return sanitizer
}

// SanitizeText applies the sanitizer to an in-memory string.
func SanitizeText(text string) string {
	sanitized, err := io.ReadAll(
		CreateTextSanitizer(bytes.NewBufferString(text)))
	if err != nil {
		return text
	}
	return string(sanitized)
}
