package differ

import (
	"errors"
	"fmt"

	"github.com/defistate/cpamm-go/engine"
	"github.com/prometheus/client_golang/prometheus"
)

// ProtocolDiffer computes the diff between two views of one schema.
type ProtocolDiffer func(old, new any) (diff any, err error)

// StateDifferConfig holds all the individual differ functions and dependencies.
type StateDifferConfig struct {
	// One differ per schema (data contract), not per protocol identity.
	ProtocolDiffers map[engine.ProtocolSchema]ProtocolDiffer
	Registry        prometheus.Registerer
	Logger          Logger
}

// validate checks if the configuration is valid, ensuring required dependencies are present.
func (c *StateDifferConfig) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	return nil
}

// StateDiffer computes StateDiffs by dispatching each protocol to the differ of its schema.
type StateDiffer struct {
	metrics         *Metrics
	logger          Logger
	protocolDiffers map[engine.ProtocolSchema]ProtocolDiffer
}

// NewStateDiffer constructs a new differ from a configuration, returning an error if the config is invalid.
func NewStateDiffer(cfg *StateDifferConfig) (*StateDiffer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	protocolDiffers := make(map[engine.ProtocolSchema]ProtocolDiffer, len(cfg.ProtocolDiffers))
	for protocolID, protocolDiffer := range cfg.ProtocolDiffers {
		protocolDiffers[protocolID] = protocolDiffer
	}

	return &StateDiffer{
		metrics:         NewMetrics(cfg.Registry),
		logger:          cfg.Logger,
		protocolDiffers: protocolDiffers,
	}, nil
}

// Diff computes the changes from old to new. Both states must be free of
// protocol errors and new must come after old.
func (d *StateDiffer) Diff(old, new *engine.State) (*StateDiff, error) {
	totalTimer := prometheus.NewTimer(d.metrics.diffDuration.WithLabelValues())
	defer totalTimer.ObserveDuration()

	diff, err := d.diff(old, new)
	if err != nil {
		d.metrics.diffs.WithLabelValues("error").Inc()
		d.logger.Warn("state diff failed", "from", old.Sequence, "to", new.Sequence, "error", err)
		return nil, err
	}
	d.metrics.diffs.WithLabelValues("ok").Inc()
	return diff, nil
}

func (d *StateDiffer) diff(old, new *engine.State) (*StateDiff, error) {
	if old.HasErrors() || new.HasErrors() {
		return nil, errors.New("cannot diff a state with protocol errors")
	}
	if new.Sequence <= old.Sequence {
		return nil, fmt.Errorf("cannot diff sequence %d onto %d", new.Sequence, old.Sequence)
	}

	protocolDiffs := make(map[engine.ProtocolID]ProtocolDiff)
	for protocolID, newProtocolState := range new.Protocols {
		oldProtocolState, ok := old.Protocols[protocolID]
		if !ok {
			return nil, fmt.Errorf("protocolID %s does not exist in old state", protocolID)
		}

		differFunc, exists := d.protocolDiffers[newProtocolState.Schema]
		if !exists {
			return nil, fmt.Errorf("no differ registered for schema %q", newProtocolState.Schema)
		}
		diffData, err := differFunc(oldProtocolState.Data, newProtocolState.Data)
		if err != nil {
			return nil, err
		}

		diff := ProtocolDiff{
			Meta:   newProtocolState.Meta,
			Schema: newProtocolState.Schema,
			Data:   diffData,
		}

		protocolDiffs[protocolID] = diff
	}

	stateDiff := &StateDiff{
		Timestamp:    new.Timestamp,
		FromSequence: old.Sequence,
		ToSequence:   new.Sequence,
		Protocols:    protocolDiffs,
	}

	return stateDiff, nil
}
