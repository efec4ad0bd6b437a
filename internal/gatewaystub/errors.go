package gatewaystub

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// CodeOTPExpired is the machine code sent with a permanently expired challenge.
const CodeOTPExpired = "otp_expired"

// apiError is a fiber error that also carries a machine-readable code.
type apiError struct {
	status int
	msg    string
	code   string
}

func (e *apiError) Error() string { return e.msg }

// StatusCode lets the audit log report the status before the handler writes it.
func (e *apiError) StatusCode() int { return e.status }

func newAPIError(status int, msg, code string) error {
	return &apiError{status: status, msg: msg, code: code}
}

// errorHandler renders every failure as {"error": ..., "code": ...}.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		msg := "internal error"
		code := ""

		var fe *fiber.Error
		var ae *apiError
		switch {
		case errors.As(err, &ae):
			status, msg, code = ae.status, ae.msg, ae.code
		case errors.As(err, &fe):
			status, msg = fe.Code, fe.Message
		default:
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		}

		body := fiber.Map{"error": msg}
		if code != "" {
			body["code"] = code
		}
		return c.Status(status).JSON(body)
	}
}
