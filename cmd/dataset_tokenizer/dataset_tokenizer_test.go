package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cgarciae/minformer"
	"github.com/stretchr/testify/assert"
)

type SanitizerTest struct {
	Name     string
	Input    string
	Expected string
}

var sanitizerTests = []SanitizerTest{
	{"\\n handling",
		"\nfoobar\\n\n",
		"\nfoobar\n"},
	{"\\r handling",
		"\r\n\r\n",
		"\n"},
	{"Trailing spaces handling",
		"foobar  ",
		"foobar"},
	{"Extra spaces handling",
		"foo  bar",
		"foo bar"},
	{"Prefix spaces handling",
		" foo bar",
		"foo bar"},
	{"Colon with spaces handling",
		"foo : bar",
		"foo: bar"},
	{"Extra spaces with newlines",
		" foo \n   bar\nfoo ",
		"foo\nbar\nfoo"},
	{"Tab handling",
		"foo\tbar",
		"foo bar"},
}

func TestSanitizeText(t *testing.T) {
	for _, test := range sanitizerTests {
		assert.Equal(t, test.Expected, SanitizeText(test.Input),
			test.Name)
	}
}

func writeInputCorpus(t *testing.T, dir string, files map[string]string) {
	for name, content := range files {
		assert.NoError(t, os.WriteFile(
			filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestGlobTexts(t *testing.T) {
	dir := t.TempDir()
	writeInputCorpus(t, dir, map[string]string{
		"a.txt": "alpha\n",
		"b.txt": "beta\n",
	})
	assert.NoError(t, os.WriteFile(
		filepath.Join(dir, "ignored.md"), []byte("nope"), 0644))

	matches, err := GlobTexts(dir)
	assert.NoError(t, err)
	assert.Len(t, matches, 2)

	_, emptyErr := GlobTexts(t.TempDir())
	assert.Error(t, emptyErr)
}

func TestOrderPathInfos(t *testing.T) {
	pathInfos := []PathInfo{
		{Path: "b", Size: 2},
		{Path: "a", Size: 3},
		{Path: "c", Size: 1},
	}
	assert.NoError(t, OrderPathInfos(pathInfos, "size_ascending"))
	assert.Equal(t, "c", pathInfos[0].Path)
	assert.NoError(t, OrderPathInfos(pathInfos, "path_descending"))
	assert.Equal(t, "c", pathInfos[0].Path)
	assert.Error(t, OrderPathInfos(pathInfos, "bogus"))
}

func TestPackTextsEndToEnd(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeInputCorpus(t, inputDir, map[string]string{
		"a.txt": "the first file\nhas two lines\n",
		"b.txt": "and one more\n",
	})

	encoder := minformer.NewCharEncoder()
	writer, writerErr := minformer.NewShardWriter(outputDir, 4)
	assert.NoError(t, writerErr)
	packer, packerErr := minformer.NewPacker(encoder, writer, 32)
	assert.NoError(t, packerErr)

	nextText, readErr := ReadTexts(inputDir, false, "path_ascending")
	assert.NoError(t, readErr)
	assert.NoError(t, PackTexts(packer, nextText, false))
	assert.NoError(t, writer.Close())

	windows, shardErr := minformer.ReadShard(
		minformer.ShardPath(outputDir, 0))
	assert.NoError(t, shardErr)

	reconstructed := ""
	for _, window := range windows {
		segments, retokErr := minformer.Retokenize(window, encoder)
		assert.NoError(t, retokErr)
		for _, segment := range segments {
			reconstructed += segment
		}
	}
	assert.Equal(t,
		"the first file\nhas two lines\nand one more\n", reconstructed)
}

func TestPackTextsSanitized(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeInputCorpus(t, inputDir, map[string]string{
		"a.txt": "messy  text \r\n\r\nhere ",
	})

	encoder := minformer.NewCharEncoder()
	writer, writerErr := minformer.NewShardWriter(outputDir, 4)
	assert.NoError(t, writerErr)
	packer, packerErr := minformer.NewPacker(encoder, writer, 32)
	assert.NoError(t, packerErr)

	nextText, readErr := ReadTexts(inputDir, true, "")
	assert.NoError(t, readErr)
	assert.NoError(t, PackTexts(packer, nextText, false))
	assert.NoError(t, writer.Close())

	windows, shardErr := minformer.ReadShard(
		minformer.ShardPath(outputDir, 0))
	assert.NoError(t, shardErr)
	assert.Len(t, windows, 1)
	segments, retokErr := minformer.Retokenize(windows[0], encoder)
	assert.NoError(t, retokErr)
	assert.Equal(t, []string{"messy text\n", "here\n"}, segments)
}
