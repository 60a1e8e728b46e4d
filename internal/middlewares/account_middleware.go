package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	AccountIDHeader = "X-Account-ID"
	RequestIDHeader = "X-Request-ID"

	accountIDLocal = "accountID"
	requestIDLocal = "requestID"
)

// AccountScopeMiddleware requires the caller's account id. Every run lookup behind it is scoped
// to that account.
func AccountScopeMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		accountID := strings.TrimSpace(c.Get(AccountIDHeader))
		if accountID == "" {
			log.Warn().Str("path", c.Path()).Msg("Request without account id")

			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Account ID required",
			})
		}

		c.Locals(accountIDLocal, accountID)

		return c.Next()
	}
}

func AccountID(c fiber.Ctx) string {
	accountID, _ := c.Locals(accountIDLocal).(string)

	return accountID
}

// RequestIDMiddleware propagates the caller's request id or assigns a new one.
func RequestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Locals(requestIDLocal, requestID)
		c.Set(RequestIDHeader, requestID)

		return c.Next()
	}
}

func RequestID(c fiber.Ctx) string {
	requestID, _ := c.Locals(requestIDLocal).(string)

	return requestID
}
