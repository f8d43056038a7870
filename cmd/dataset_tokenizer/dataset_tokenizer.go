package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/cgarciae/minformer"
	"github.com/dustin/go-humanize"
	"github.com/yargevad/filepathx"
)

type TextsIterator func() io.Reader

type PathInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// GlobTexts
// Given a directory path, recursively finds all `.txt` files, returning
// a slice of PathInfo.
func GlobTexts(dirPath string) (pathInfos []PathInfo, err error) {
	textPaths, err := filepathx.Glob(dirPath + "/**/*.txt")
	if err != nil {
		return nil, err
	}
	if len(textPaths) == 0 {
		return nil, errors.New(fmt.Sprintf(
			"%s does not contain any .txt files", dirPath))
	}
	pathInfos = make([]PathInfo, len(textPaths))
	for matchIdx, currPath := range textPaths {
		stat, statErr := os.Stat(currPath)
		if statErr != nil {
			return nil, statErr
		}
		pathInfos[matchIdx] = PathInfo{
			Path:    currPath,
			Size:    stat.Size(),
			ModTime: stat.ModTime(),
		}
	}
	return pathInfos, nil
}

// OrderPathInfos
// Reorders input files per the given specification, one of
// size_ascending, size_descending, path_ascending, path_descending,
// random, or the empty string for no reordering.
func OrderPathInfos(pathInfos []PathInfo, sortSpec string) error {
	switch sortSpec {
	case "":
	case "size_ascending":
		sort.Slice(pathInfos, func(i, j int) bool {
			return pathInfos[i].Size < pathInfos[j].Size
		})
	case "size_descending":
		sort.Slice(pathInfos, func(i, j int) bool {
			return pathInfos[i].Size > pathInfos[j].Size
		})
	case "path_ascending":
		sort.Slice(pathInfos, func(i, j int) bool {
			return pathInfos[i].Path < pathInfos[j].Path
		})
	case "path_descending":
		sort.Slice(pathInfos, func(i, j int) bool {
			return pathInfos[i].Path > pathInfos[j].Path
		})
	case "random":
		rand.Shuffle(len(pathInfos), func(i, j int) {
			pathInfos[i], pathInfos[j] = pathInfos[j], pathInfos[i]
		})
	default:
		return errors.New(fmt.Sprintf("Invalid sort spec: %s", sortSpec))
	}
	return nil
}

// NewestModTime returns the most recent modification time among the
// given inputs, for deciding whether an existing dataset is stale.
func NewestModTime(pathInfos []PathInfo) (newest time.Time) {
	for _, pathInfo := range pathInfos {
		if pathInfo.ModTime.After(newest) {
			newest = pathInfo.ModTime
		}
	}
	return newest
}

// ReadTexts
// Consumes a directory path and recursively scans for `.txt` files,
// producing a TextsIterator that yields each file as an io.Reader. The
// next file's buffers are set up pre-emptively while the prior file is
// being consumed.
func ReadTexts(dirPath string, sanitize bool, sortSpec string) (
	TextsIterator, error) {
	matches, err := GlobTexts(dirPath)
	if err != nil {
		return nil, err
	}
	if err := OrderPathInfos(matches, sortSpec); err != nil {
		return nil, err
	}

	type namedReader struct {
		path   string
		reader io.Reader
	}

	readers := make(chan namedReader, 4)
	go func() {
		for _, match := range matches {
			fileReader, openErr := os.Open(match.Path)
			if openErr != nil {
				log.Fatal(openErr)
			}
			if sanitize {
				readers <- namedReader{
					match.Path,
					CreateTextSanitizer(fileReader)}
			} else {
				readers <- namedReader{
					match.Path,
					bufio.NewReaderSize(fileReader, 8*1024*1024)}
			}
		}
		close(readers)
	}()

	return func() io.Reader {
		reader, ok := <-readers
		if !ok {
			return nil
		}
		log.Print("Reading ", reader.path)
		return reader.reader
	}, nil
}

// PackTexts
// Drains a TextsIterator through the packer, either line by line or,
// with bySentence set, one prose sentence per segment.
func PackTexts(packer *minformer.Packer, nextText TextsIterator,
	bySentence bool) error {
	for {
		reader := nextText()
		if reader == nil {
			return packer.Flush()
		}
		if bySentence {
			text, readErr := io.ReadAll(reader)
			if readErr != nil {
				return readErr
			}
			sentences, splitErr := minformer.SplitSentences(string(text))
			if splitErr != nil {
				return splitErr
			}
			for _, sentence := range sentences {
				if err := packer.IngestLine(sentence); err != nil {
					return err
				}
			}
		} else if err := packer.IngestReader(reader); err != nil {
			return err
		}
	}
}

func main() {
	inputDir := flag.String("input", "",
		"input directory to scan for .txt files")
	outputDir := flag.String("output", "dataset",
		"output directory for shard files")
	contextSize := flag.Int("context", 1024,
		"window width in tokens for every packed example")
	recordsPerShard := flag.Int("records_per_shard", 4096,
		"records written to a shard before rotating to the next")
	delimiter := flag.String("delimiter", "\n",
		"delimiter appended to each logical line before tokenizing")
	sentenceBool := flag.Bool("sentences", false,
		"pack one sentence per segment instead of one line")
	sanitizeBool := flag.Bool("sanitize", false,
		"sanitize inputs of whitespace issues")
	reorderPaths := flag.String("reorder", "",
		"reorder input files to specification [size_ascending, "+
			"size_descending, path_ascending, path_descending, random]")
	forceRepack := flag.Bool("repack", false,
		"force repacking even if shard output is newer than inputs")
	flag.Parse()
	if *inputDir == "" {
		flag.Usage()
		log.Fatal("Must provide -input for directory source")
	}

	log.Printf("Dataset input source: %s\n", *inputDir)
	log.Printf("Dataset output: %s\n", *outputDir)
	log.Printf("Window width: %d, records per shard: %d\n",
		*contextSize, *recordsPerShard)

	matches, globErr := GlobTexts(*inputDir)
	if globErr != nil {
		log.Fatal(globErr)
	}
	if !*forceRepack {
		if outStat, outErr := os.Stat(minformer.ShardPath(*outputDir,
			0)); outErr == nil &&
			NewestModTime(matches).Before(outStat.ModTime()) {
			log.Printf("No input is newer than `%s`, not repacking. "+
				"Use -repack to force.", outStat.Name())
			os.Exit(0)
		}
	}

	if mkErr := os.MkdirAll(*outputDir, 0755); mkErr != nil {
		log.Fatal(mkErr)
	}

	encoder := minformer.NewCharEncoder()
	writer, writerErr := minformer.NewShardWriter(*outputDir,
		*recordsPerShard)
	if writerErr != nil {
		log.Fatal(writerErr)
	}
	packer, packerErr := minformer.NewPacker(encoder, writer,
		*contextSize)
	if packerErr != nil {
		log.Fatal(packerErr)
	}
	packer.Delimiter = *delimiter

	nextText, readErr := ReadTexts(*inputDir, *sanitizeBool,
		*reorderPaths)
	if readErr != nil {
		log.Fatal(readErr)
	}

	begin := time.Now()
	if packErr := PackTexts(packer, nextText, *sentenceBool); packErr != nil {
		log.Fatal(packErr)
	}
	if closeErr := writer.Close(); closeErr != nil {
		log.Fatal(closeErr)
	}
	duration := time.Now().Sub(begin).Seconds()
	log.Printf("%s tokens in %s windows across %d shards in %0.2fs, "+
		"%0.2f tokens/s",
		humanize.Comma(int64(writer.TotalTokens)),
		humanize.Comma(int64(writer.TotalWindows)),
		writer.ShardIndex()+1, duration,
		float64(writer.TotalTokens)/duration)
}
