package minformer

import (
	"github.com/jdkato/prose/v2"
)

// SplitSentences
// Segments text into sentences for sentence-level packing, where each
// sentence rather than each line becomes one packed segment. Tagging,
// extraction and word tokenization are disabled; only the sentence
// segmenter runs.
func SplitSentences(text string) ([]string, error) {
	doc, err := prose.NewDocument(
		text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false),
	)
	if err != nil {
		return nil, err
	}
	docSentences := doc.Sentences()
	sentences := make([]string, 0, len(docSentences))
	for _, sentence := range docSentences {
		sentences = append(sentences, sentence.Text)
	}
	return sentences, nil
}
