package exchange

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds an exchange HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type submitRequest struct {
	FromValue    int64  `json:"from_value"`
	FromCurrency string `json:"from_currency"`
	ToValue      int64  `json:"to_value"`
	ToCurrency   string `json:"to_currency"`
}

// Submit creates a new offer for the authenticated user, settling it
// immediately when the pool satisfies it.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	email, _ := c.Locals("email").(string)

	res, err := h.service.Submit(c.UserContext(), SubmitInput{
		FromUser:     email,
		FromValue:    req.FromValue,
		FromCurrency: req.FromCurrency,
		ToValue:      req.ToValue,
		ToCurrency:   req.ToCurrency,
	})
	if err != nil {
		return h.mapError(c, err)
	}

	if res.Settled {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"settled":      true,
			"transactions": res.Transactions,
		})
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"settled": false,
		"offer":   res.Offer,
	})
}

// List returns all outstanding offers.
func (h *Handler) List(c *fiber.Ctx) error {
	offers, err := h.service.Offers(c.UserContext())
	if err != nil {
		return h.mapError(c, err)
	}
	if offers == nil {
		offers = []Offer{}
	}
	return c.Status(http.StatusOK).JSON(offers)
}

// Cancel removes one of the caller's outstanding offers, reversing its escrow.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	email, _ := c.Locals("email").(string)
	if err := h.service.Cancel(c.UserContext(), c.Params("offerId"), email); err != nil {
		return h.mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "offer cancelled and funds returned"})
}

// Accept settles a specific outstanding offer against the caller's wallet.
func (h *Handler) Accept(c *fiber.Ctx) error {
	email, _ := c.Locals("email").(string)
	tx, err := h.service.Accept(c.UserContext(), c.Params("offerId"), email)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transaction": tx})
}

// Transactions returns settlement history, optionally scoped to the caller.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	var filter string
	if c.QueryBool("mine") {
		filter, _ = c.Locals("email").(string)
	}
	txs, err := h.service.Transactions(c.UserContext(), filter)
	if err != nil {
		return h.mapError(c, err)
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return c.Status(http.StatusOK).JSON(txs)
}

// mapError translates engine errors to HTTP responses. Internal errors are
// logged with context and surfaced as a generic failure.
func (h *Handler) mapError(c *fiber.Ctx, err error) error {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"message": "invalid offer",
			"errors":  validation.Fields,
		})
	}
	var insufficient *InsufficientFundsError
	if errors.As(err, &insufficient) {
		return fiber.NewError(http.StatusBadRequest, insufficient.Error())
	}
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrOfferNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrSelfAccept):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		h.logger.Error("exchange operation failed", "path", c.Path(), "error", err)
		return fiber.NewError(http.StatusInternalServerError, "internal server error")
	}
}
