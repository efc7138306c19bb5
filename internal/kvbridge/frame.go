// Package kvbridge carries the shared store to other processes over a
// WebSocket. Each remote peer gets its own kv connection, so writes from a
// peer are never echoed back to it.
package kvbridge

// Frame operations.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpWatch  = "watch"
	OpResult = "result"
	OpChange = "change"
)

// ReadLimit bounds a single frame.
const ReadLimit = 1 << 20

type frame struct {
	Op    string `json:"op"`
	ID    uint64 `json:"id,omitempty"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	Found bool   `json:"found,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}
