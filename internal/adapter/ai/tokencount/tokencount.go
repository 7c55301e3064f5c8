// Package tokencount estimates token usage when the generation backend does
// not report it, so round feedback always carries input and output counts.
//
// Gemini uses its own tokenizer; cl100k_base is close enough for accounting
// and is loaded offline so no network access is needed at runtime.
package tokencount

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const encodingName = "cl100k_base"

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Usage is an estimated token count for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Counter is safe for concurrent use.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// DefaultCounter is shared by the generators.
var DefaultCounter = &Counter{}

func (c *Counter) encoding() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(encodingName)
	})
	return c.enc, c.err
}

// Count returns the number of tokens in text. If the encoding is unavailable
// it falls back to roughly four characters per token.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	enc, err := c.encoding()
	if err != nil {
		slog.Debug("token encoding unavailable, using estimate", slog.Any("error", err))
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// Estimate counts a system instruction plus user prompt as input and the
// completion as output.
func (c *Counter) Estimate(system, prompt, completion string) Usage {
	return Usage{
		InputTokens:  c.Count(system) + c.Count(prompt),
		OutputTokens: c.Count(completion),
	}
}

// Estimate uses DefaultCounter.
func Estimate(system, prompt, completion string) Usage {
	return DefaultCounter.Estimate(system, prompt, completion)
}
