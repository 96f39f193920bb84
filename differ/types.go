package differ

import "github.com/defistate/cpamm-go/engine"

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type ProtocolDiff struct {
	Meta engine.ProtocolMeta `json:"meta"`

	// Schema is the decode contract for Data.
	// Example:
	// "cpamm/constant-product/PoolView@v1"
	Schema engine.ProtocolSchema `json:"schema"`

	// Data is the protocol diff, shaped by Schema.
	Data any `json:"data,omitempty"`

	// Error is populated if this protocol could not produce a view for this sequence.
	Error string `json:"error,omitempty"`
}

// StateDiff summarizes the changes from FromSequence to ToSequence.
type StateDiff struct {
	Timestamp    uint64                             `json:"timestamp"`
	FromSequence uint64                             `json:"fromSequence"`
	ToSequence   uint64                             `json:"toSequence"`
	Protocols    map[engine.ProtocolID]ProtocolDiff `json:"protocols"`
}
