// Package engine defines the state published to stream subscribers.
package engine

type ProtocolName string
type ProtocolID string

// ProtocolSchema defines the decode contract for a protocol's data
type ProtocolSchema string

type ProtocolMeta struct {
	Name ProtocolName `json:"name"`           // human label
	Tags []string     `json:"tags,omitempty"` // "dex", "amm", etc.
}

type ProtocolState struct {
	Meta ProtocolMeta `json:"meta"`

	// Schema is the decode contract for Data.
	// Example:
	// "cpamm/constant-product/PoolView@v1"
	Schema ProtocolSchema `json:"schema"`

	// Data is the protocol view, shaped by Schema.
	Data any `json:"data,omitempty"`

	// Error is populated if this protocol could not produce a view for this sequence.
	Error string `json:"error,omitempty"`
}

// State is the main data structure broadcast to subscribers.
type State struct {
	// Sequence increases by one with every committed mutation of any pool.
	Sequence  uint64                       `json:"sequence"`
	Timestamp uint64                       `json:"timestamp"` // unix nanoseconds
	Protocols map[ProtocolID]ProtocolState `json:"protocols"`
}

func (state *State) HasErrors() bool {
	for _, pr := range state.Protocols {
		if pr.Error != "" {
			return true
		}
	}
	return false
}
