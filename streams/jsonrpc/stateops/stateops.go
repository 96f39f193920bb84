// Package stateops wires the per-schema differs, patchers and JSON decoders of the
// pool state stream.
package stateops

import (
	"encoding/json"
	"fmt"

	"github.com/defistate/cpamm-go/differ"
	"github.com/defistate/cpamm-go/engine"
	"github.com/defistate/cpamm-go/patcher"
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StateOps is a facade over the two halves of the stream:
// 1. Differ: computing the delta between two states (used by the server).
// 2. Patcher: applying a delta to a previous state (used by clients).
type StateOps struct {
	*differ.StateDiffer
	*patcher.StatePatcher
}

func NewStateOps(
	logger Logger,
	prometheusRegistry prometheus.Registerer,
) (*StateOps, error) {
	protocolDiffers := map[engine.ProtocolSchema]differ.ProtocolDiffer{
		constantproduct.Schema: func(old, new any) (diff any, err error) {
			oldPools, ok := old.([]constantproduct.PoolView)
			if !ok {
				return nil, fmt.Errorf("old state has type %T", old)
			}
			newPools, ok := new.([]constantproduct.PoolView)
			if !ok {
				return nil, fmt.Errorf("new state has type %T", new)
			}
			return constantproduct.Differ(oldPools, newPools), nil
		},
	}

	protocolPatchers := map[engine.ProtocolSchema]patcher.PatcherFunc{
		constantproduct.Schema: func(prevState, diff any) (newState any, err error) {
			// a nil previous state means the protocol is new
			prevPools, _ := prevState.([]constantproduct.PoolView)
			poolsDiff, ok := diff.(constantproduct.PoolSystemDiff)
			if !ok {
				return nil, fmt.Errorf("diff has type %T", diff)
			}
			return constantproduct.Patcher(prevPools, poolsDiff)
		},
	}

	stateDiffer, err := differ.NewStateDiffer(&differ.StateDifferConfig{
		ProtocolDiffers: protocolDiffers,
		Logger:          logger,
		Registry:        prometheusRegistry,
	})
	if err != nil {
		return nil, err
	}

	statePatcher, err := patcher.NewStatePatcher(&patcher.StatePatcherConfig{
		Patchers: protocolPatchers,
	})
	if err != nil {
		return nil, err
	}

	return &StateOps{
		StateDiffer:  stateDiffer,
		StatePatcher: statePatcher,
	}, nil
}

// DecodeStateJSON decodes the data of a protocol state with the given schema.
func (ops *StateOps) DecodeStateJSON(
	schema engine.ProtocolSchema,
	data json.RawMessage,
) (any, error) {
	switch schema {
	case constantproduct.Schema:
		var typedData []constantproduct.PoolView
		if err := json.Unmarshal(data, &typedData); err != nil {
			return nil, err
		}
		return typedData, nil
	default:
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
}

// DecodeStateDiffJSON decodes the data of a protocol diff with the given schema.
func (ops *StateOps) DecodeStateDiffJSON(
	schema engine.ProtocolSchema,
	data json.RawMessage,
) (any, error) {
	switch schema {
	case constantproduct.Schema:
		var typedData constantproduct.PoolSystemDiff
		if err := json.Unmarshal(data, &typedData); err != nil {
			return nil, err
		}
		return typedData, nil
	default:
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
}
