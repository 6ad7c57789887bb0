package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cambio-fx/cambio_fx/internal/exchange"
	"github.com/cambio-fx/cambio_fx/internal/identity"
	"github.com/cambio-fx/cambio_fx/internal/wallet"
)

// RegisterWalletMeRoute exposes a GET endpoint to view the current user's
// profile, balances and exchange history.
func RegisterWalletMeRoute(r fiber.Router, wallets wallet.Repository, idRepo identity.Repository, exchanges *exchange.Service) {
	r.Get("/wallet", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		user, err := idRepo.FindByID(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "user not found")
		}
		w, err := wallets.ByUser(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		history, err := exchanges.Transactions(c.UserContext(), user.Email)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user": fiber.Map{
				"id":            user.ID,
				"email":         user.Email,
				"name":          user.Name,
				"token_version": user.TokenVersion,
				"created_at":    user.CreatedAt,
			},
			"wallet": fiber.Map{
				"id":         w.ID,
				"currencies": w.Currencies,
				"created_at": w.CreatedAt,
			},
			"transactions": history,
		})
	})
}
