package constantproduct

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared by every pool of a process.
// A nil *Metrics records nothing.
type Metrics struct {
	operations  *prometheus.CounterVec
	reserves    *prometheus.GaugeVec
	totalSupply *prometheus.GaugeVec
}

// NewMetrics creates the pool collectors and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cpamm",
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Pool operations by type and outcome.",
			},
			[]string{"pool", "op", "status"},
		),
		reserves: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cpamm",
				Subsystem: "pool",
				Name:      "reserve",
				Help:      "Recorded pool reserve per token.",
			},
			[]string{"pool", "token"},
		),
		totalSupply: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cpamm",
				Subsystem: "pool",
				Name:      "total_supply",
				Help:      "Outstanding liquidity shares.",
			},
			[]string{"pool"},
		),
	}
	registry.MustRegister(m.operations, m.reserves, m.totalSupply)
	return m
}

func (m *Metrics) observe(pool common.Address, op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(pool.Hex(), op, status).Inc()
}

func (m *Metrics) record(p *Pool) {
	if m == nil {
		return
	}
	pool := p.address.Hex()
	m.reserves.WithLabelValues(pool, p.tokenA.Hex()).Set(toFloat(&p.state.reserveA))
	m.reserves.WithLabelValues(pool, p.tokenB.Hex()).Set(toFloat(&p.state.reserveB))
	m.totalSupply.WithLabelValues(pool).Set(toFloat(&p.state.totalSupply))
}

func toFloat(x *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}
