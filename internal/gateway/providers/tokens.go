package providers

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens in text for a given model. Each adapter
// carries its own counter so the approximation can be swapped per
// provider family without touching the adapters.
type TokenCounter interface {
	Count(text, model string) int
}

// HeuristicCounter estimates roughly four characters per token. The
// estimate is lossy but deterministic, which keeps costs reproducible
// for providers that never report exact counts.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text, _ string) int {
	return len(text) / 4
}

// TiktokenCounter uses the exact BPE vocabularies of the OpenAI model
// family. Unknown models fall back to the heuristic.
type TiktokenCounter struct {
	fallback HeuristicCounter

	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{encoders: make(map[string]*tiktoken.Tiktoken)}
}

func (c *TiktokenCounter) Count(text, model string) int {
	enc := c.encoderFor(model)
	if enc == nil {
		return c.fallback.Count(text, model)
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) encoderFor(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encoders[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Cache the miss too so unknown models don't retry the lookup.
		c.encoders[model] = nil
		return nil
	}
	c.encoders[model] = enc
	return enc
}
