package minformer

import (
	"encoding/binary"
)

// ToBin serializes tokens as little-endian uint16 values.
func (tokens *Tokens) ToBin() *[]byte {
	buf := make([]byte, len(*tokens)*TokenSize)
	for idx, token := range *tokens {
		binary.LittleEndian.PutUint16(buf[idx*TokenSize:], uint16(token))
	}
	return &buf
}

// TokensFromBin deserializes little-endian uint16 values back into
// tokens. Trailing bytes that do not form a whole token are ignored.
func TokensFromBin(bin *[]byte) *Tokens {
	tokens := make(Tokens, 0, len(*bin)/TokenSize)
	for idx := 0; idx+TokenSize <= len(*bin); idx += TokenSize {
		tokens = append(tokens,
			Token(binary.LittleEndian.Uint16((*bin)[idx:])))
	}
	return &tokens
}
