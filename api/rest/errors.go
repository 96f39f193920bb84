package rest

import (
	"errors"

	"github.com/defistate/cpamm-go/deployer"
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/gofiber/fiber/v3"
)

// ErrInvalidQueryParameters indicates that the request query string could not
// be parsed into the expected structure.
var ErrInvalidQueryParameters = fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")

// ErrAmountRequired is returned when the amount parameter is missing.
var ErrAmountRequired = fiber.NewError(fiber.StatusBadRequest, "amount is required")

// ErrInvalidAmountFormat is returned when the amount is not a base-10 integer that fits in 256 bits.
var ErrInvalidAmountFormat = fiber.NewError(fiber.StatusBadRequest, "invalid amount format")

// ErrPoolNotFound maps an unknown pool address to a 404 error.
var ErrPoolNotFound = fiber.NewError(fiber.StatusNotFound, "pool not found")

// ErrQuoteFailedInternal signals a generic server-side quote error.
var ErrQuoteFailedInternal = fiber.NewError(fiber.StatusInternalServerError, "quote failed")

// NewAddressRequired returns a 400 Bad Request for a missing address field.
func NewAddressRequired(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, field+" address is required")
}

// NewInvalidAddress returns a 400 Bad Request for an invalid address format.
func NewInvalidAddress(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+" address")
}

// badRequests are the pool errors caused by the request rather than the server.
var badRequests = []error{
	constantproduct.ErrInvalidInputToken,
	constantproduct.ErrInvalidOutputToken,
	constantproduct.ErrInsufficientLiquidity,
	constantproduct.ErrOverflow,
}

func (h *Handler) handleServiceError(err error) error {
	if errors.Is(err, deployer.ErrPoolNotFound) {
		return ErrPoolNotFound
	}
	for _, target := range badRequests {
		if errors.Is(err, target) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	h.logger.Error("pool query failed", "err", err)
	return ErrQuoteFailedInternal
}
