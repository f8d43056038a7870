package minformer

import (
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

const LINE_LRU_SZ = 65536

type Token uint16
type Tokens []Token

const (
	TokenSize = 2
)

// UnknownToken is the reserved id for any rune outside the vocabulary.
// It is a sentinel in both directions: encoding an unknown rune yields
// it, and decoding it yields the empty glyph.
const UnknownToken Token = 0

// The base printable set, in declared order. Ids are assigned 1..N by
// walking these strings and then extraChars, so the assignment is
// reproducible across runs and platforms.
const (
	digits       = "0123456789"
	asciiLetters = "abcdefghijklmnopqrstuvwxyz" +
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	whitespace  = " \t\n\r\v\f"
)

// extraChars covers the characters that show up in book corpora but
// fall outside the printable ASCII set: curly quotes, ellipsis, the
// long dashes, and common accented letters.
var extraChars = []rune{
	'‘', '’', '“', '”', '…', '–', '—',
	'à', 'â', 'ä', 'ç', 'è', 'é', 'ê', 'ë', 'î', 'ï',
	'ô', 'ö', 'ù', 'û', 'ü',
}

// CharEncoder
// A fixed character-level vocabulary with bidirectional lookup tables.
// Constructed once and shared read-only; the encode path keeps an LRU
// of per-line encodings since real corpora repeat lines heavily.
type CharEncoder struct {
	chars     []rune
	CharToId  map[rune]Token
	IdToChar  map[Token]rune
	Cache     *lru.ARCCache
	LruHits   int
	LruMisses int
}

// NewCharEncoder
// Builds the fixed vocabulary: digits, ASCII letters, punctuation and
// whitespace, then the extra characters, with ids assigned 1..N in
// declared order. Id 0 is reserved for unknown runes.
func NewCharEncoder() *CharEncoder {
	chars := make([]rune, 0, 128)
	for _, s := range []string{
		digits, asciiLetters, punctuation, whitespace,
	} {
		chars = append(chars, []rune(s)...)
	}
	chars = append(chars, extraChars...)

	charToId := make(map[rune]Token, len(chars))
	idToChar := make(map[Token]rune, len(chars))
	for idx, c := range chars {
		id := Token(idx + 1)
		charToId[c] = id
		idToChar[id] = c
	}
	cache, _ := lru.NewARC(LINE_LRU_SZ)
	return &CharEncoder{
		chars:    chars,
		CharToId: charToId,
		IdToChar: idToChar,
		Cache:    cache,
	}
}

// VocabSize returns the number of real characters plus the unknown
// sentinel.
func (encoder *CharEncoder) VocabSize() int {
	return len(encoder.chars) + 1
}

// Get looks up the token id for a single character, returning nil if
// the character is not in the vocabulary.
func (encoder *CharEncoder) Get(c rune) *Token {
	if id, ok := encoder.CharToId[c]; ok {
		return &id
	}
	return nil
}

// Encode
// Maps every rune of `text` to its token id, substituting
// UnknownToken for runes outside the vocabulary. Never fails; unknown
// input degrades, it does not error. Callers must not mutate the
// returned slice, as it may be shared via the cache.
func (encoder *CharEncoder) Encode(text *string) *Tokens {
	if cached, ok := encoder.Cache.Get(*text); ok {
		encoder.LruHits += 1
		tokens := cached.(Tokens)
		return &tokens
	}
	encoder.LruMisses += 1
	tokens := make(Tokens, 0, len(*text))
	for _, c := range *text {
		tokens = append(tokens, encoder.CharToId[c])
	}
	encoder.Cache.Add(*text, tokens)
	return &tokens
}

// Decode
// Maps token ids back to characters. UnknownToken and any id outside
// [1, N] decode to the empty glyph rather than failing, so a decoded
// string may be shorter than the token count.
func (encoder *CharEncoder) Decode(encoded *Tokens) string {
	var text strings.Builder
	text.Grow(len(*encoded))
	for _, id := range *encoded {
		if c, ok := encoder.IdToChar[id]; ok {
			text.WriteRune(c)
		}
	}
	return text.String()
}
