package context

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens returns the cl100k_base token count of text, falling back to
// a whitespace word count if the encoder fails to load (the tokenizer
// asset may be unavailable at runtime).
func CountTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		n := len(strings.Fields(text))
		if n == 0 {
			return 1
		}
		return n
	}
	return len(enc.Encode(text, nil, nil))
}
