package routes

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cambio-fx/cambio_fx/internal/identity"
	"github.com/cambio-fx/cambio_fx/internal/wallet"
)

// RegisterIdentityRoutes wires identity endpoints and auto-provisions a
// randomly seeded multi-currency wallet on registration.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, wallets wallet.Repository, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Name     string `json:"name"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Credentials{Email: req.Email, Name: req.Name, Password: req.Password})
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		var walletID string
		if wallets != nil {
			w, err := wallets.Create(c.UserContext(), wallet.NewDefault(user.ID))
			if err != nil {
				return fiber.NewError(http.StatusInternalServerError, "wallet provisioning failed")
			}
			walletID = w.ID
		}
		if logger != nil {
			logger.Info("identity.register completed",
				slog.String("user_id", user.ID),
				slog.String("email", user.Email),
				slog.String("wallet_id", walletID),
				slog.Int("status", http.StatusCreated),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":   user.ID,
			"email":     user.Email,
			"name":      user.Name,
			"wallet_id": walletID,
		})
	})
}
