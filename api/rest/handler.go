// Package rest serves read-only pool views and quotes over HTTP.
package rest

import (
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"github.com/holiman/uint256"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Backend answers pool queries. Implementations serialize access to the pools.
type Backend interface {
	Pools() []constantproduct.PoolView
	Pool(address common.Address) (constantproduct.PoolView, error)
	GetAmountOut(address, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error)
	GetAmountIn(address, tokenOut common.Address, amountOut *uint256.Int) (*uint256.Int, error)
}

type Handler struct {
	logger  Logger
	backend Backend
}

func NewHandler(logger Logger, backend Backend) *Handler {
	return &Handler{logger: logger, backend: backend}
}

// Register mounts the pool routes on router.
func (h *Handler) Register(router fiber.Router) {
	router.Get("/pools", h.ListPools)
	router.Get("/pools/:address", h.GetPool)
	router.Get("/pools/:address/amount-out", h.AmountOut)
	router.Get("/pools/:address/amount-in", h.AmountIn)
}

// AmountOutRequest holds the query of GET /pools/:address/amount-out.
type AmountOutRequest struct {
	TokenIn  string `query:"token_in" json:"token_in"`
	AmountIn string `query:"amount_in" json:"amount_in"`
}

// AmountInRequest holds the query of GET /pools/:address/amount-in.
type AmountInRequest struct {
	TokenOut  string `query:"token_out" json:"token_out"`
	AmountOut string `query:"amount_out" json:"amount_out"`
}

// QuoteResponse is returned by both quote endpoints. Amounts are base-10 strings.
type QuoteResponse struct {
	Pool      common.Address `json:"pool"`
	TokenIn   common.Address `json:"token_in"`
	TokenOut  common.Address `json:"token_out"`
	AmountIn  string         `json:"amount_in"`
	AmountOut string         `json:"amount_out"`
}

func (h *Handler) ListPools(c fiber.Ctx) error {
	return c.JSON(h.backend.Pools())
}

func (h *Handler) GetPool(c fiber.Ctx) error {
	address, err := parseAddress("pool", c.Params("address"))
	if err != nil {
		return err
	}
	view, err := h.backend.Pool(address)
	if err != nil {
		return h.handleServiceError(err)
	}
	return c.JSON(view)
}

func (h *Handler) AmountOut(c fiber.Ctx) error {
	var req AmountOutRequest
	if err := c.Bind().Query(&req); err != nil {
		h.logger.Debug("failed to bind query parameters", "err", err)
		return ErrInvalidQueryParameters
	}
	pool, err := parseAddress("pool", c.Params("address"))
	if err != nil {
		return err
	}
	tokenIn, err := parseAddress("token_in", req.TokenIn)
	if err != nil {
		return err
	}
	amountIn, err := parseAmount(req.AmountIn)
	if err != nil {
		return err
	}

	view, err := h.backend.Pool(pool)
	if err != nil {
		return h.handleServiceError(err)
	}
	amountOut, err := h.backend.GetAmountOut(pool, tokenIn, amountIn)
	if err != nil {
		return h.handleServiceError(err)
	}

	h.logger.Debug("amount out quoted", "pool", pool, "token_in", tokenIn, "in", amountIn.Dec(), "out", amountOut.Dec())
	return c.JSON(QuoteResponse{
		Pool:      pool,
		TokenIn:   tokenIn,
		TokenOut:  other(view, tokenIn),
		AmountIn:  amountIn.Dec(),
		AmountOut: amountOut.Dec(),
	})
}

func (h *Handler) AmountIn(c fiber.Ctx) error {
	var req AmountInRequest
	if err := c.Bind().Query(&req); err != nil {
		h.logger.Debug("failed to bind query parameters", "err", err)
		return ErrInvalidQueryParameters
	}
	pool, err := parseAddress("pool", c.Params("address"))
	if err != nil {
		return err
	}
	tokenOut, err := parseAddress("token_out", req.TokenOut)
	if err != nil {
		return err
	}
	amountOut, err := parseAmount(req.AmountOut)
	if err != nil {
		return err
	}

	view, err := h.backend.Pool(pool)
	if err != nil {
		return h.handleServiceError(err)
	}
	amountIn, err := h.backend.GetAmountIn(pool, tokenOut, amountOut)
	if err != nil {
		return h.handleServiceError(err)
	}

	h.logger.Debug("amount in quoted", "pool", pool, "token_out", tokenOut, "in", amountIn.Dec(), "out", amountOut.Dec())
	return c.JSON(QuoteResponse{
		Pool:      pool,
		TokenIn:   other(view, tokenOut),
		TokenOut:  tokenOut,
		AmountIn:  amountIn.Dec(),
		AmountOut: amountOut.Dec(),
	})
}

func parseAddress(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, NewAddressRequired(field)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, NewInvalidAddress(field)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(value string) (*uint256.Int, error) {
	if value == "" {
		return nil, ErrAmountRequired
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, ErrInvalidAmountFormat
	}
	return amount, nil
}

// other returns the pool token that is not token. An unknown token yields the zero
// address; the quote itself rejects it.
func other(view constantproduct.PoolView, token common.Address) common.Address {
	switch token {
	case view.TokenA:
		return view.TokenB
	case view.TokenB:
		return view.TokenA
	}
	return common.Address{}
}
