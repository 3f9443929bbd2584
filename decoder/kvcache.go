package decoder

import "github.com/ieee0824/whisper-go/internal/nn"

// KVCache holds the self-attention keys and values of every decoder layer
// for the tokens fed so far. It only grows within a window.
type KVCache struct {
	layers []nn.KV
}

// NewKVCache returns an empty cache for nLayers layers of width d.
func NewKVCache(nLayers, d int) *KVCache {
	c := &KVCache{layers: make([]nn.KV, nLayers)}
	for i := range c.layers {
		c.layers[i] = nn.NewKV(d)
	}
	return c
}

// Len returns the number of cached token positions.
func (c *KVCache) Len() int {
	if len(c.layers) == 0 {
		return 0
	}
	return c.layers[0].Len()
}

// Clone returns an independent copy, used when a beam hypothesis forks.
func (c *KVCache) Clone() *KVCache {
	out := &KVCache{layers: make([]nn.KV, len(c.layers))}
	for i, kv := range c.layers {
		out.layers[i] = kv.Clone()
	}
	return out
}

// Reset drops every cached row.
func (c *KVCache) Reset() {
	for i := range c.layers {
		d := c.layers[i].K.Cols()
		c.layers[i] = nn.NewKV(d)
	}
}
