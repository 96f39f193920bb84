package constantproduct

import "github.com/defistate/cpamm-go/engine"

// Schema is the decode contract of []PoolView states and PoolSystemDiff diffs.
const Schema engine.ProtocolSchema = "cpamm/constant-product/PoolView@v1"

// ProtocolID keys the constant-product pools in an engine.State.
const ProtocolID engine.ProtocolID = "constantproduct"

// Meta describes the constant-product pools in an engine.State.
var Meta = engine.ProtocolMeta{Name: "ConstantProduct", Tags: []string{"dex", "amm"}}
