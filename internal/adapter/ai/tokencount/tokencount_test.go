package tokencount

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	t.Parallel()

	counter := &Counter{}

	tests := []struct {
		name     string
		text     string
		minCount int
		maxCount int
	}{
		{name: "empty", text: "", minCount: 0, maxCount: 0},
		{name: "short", text: "Hello, world!", minCount: 3, maxCount: 5},
		{name: "sentence", text: "The quick brown fox jumps over the lazy dog.", minCount: 8, maxCount: 12},
		{name: "unicode", text: "Café naïve résumé 日本語", minCount: 5, maxCount: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := counter.Count(tt.text)
			assert.GreaterOrEqual(t, n, tt.minCount)
			assert.LessOrEqual(t, n, tt.maxCount)
		})
	}
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	u := Estimate("You are an interview coach.", "Summarize the round.", `{"overview":"Solid answers."}`)
	assert.Greater(t, u.InputTokens, 5)
	assert.Greater(t, u.OutputTokens, 3)

	long := Estimate(strings.Repeat("transcript ", 500), "", "")
	assert.GreaterOrEqual(t, long.InputTokens, 400)
	assert.Zero(t, long.OutputTokens)
}

func TestCount_Concurrent(t *testing.T) {
	t.Parallel()

	counter := &Counter{}
	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = counter.Count("Tell me about yourself")
		}(i)
	}
	wg.Wait()
	for _, n := range results {
		assert.Equal(t, results[0], n)
	}
}
