package gatewaystub

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sangathan/sangathan/internal/identity"
	"github.com/sangathan/sangathan/internal/notification"
)

type handler struct {
	ids      *identity.Service
	otps     *otpIssuer
	tokens   tokenIssuer
	notifier notification.Notifier
	logger   *slog.Logger
}

type credentialsRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type otpRequest struct {
	Phone string `json:"phone"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type grantResponse struct {
	AccessToken string         `json:"accessToken"`
	UserProfile map[string]any `json:"userProfile"`
}

func (h *handler) login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Phone: req.Phone, Password: req.Password})
	switch {
	case errors.Is(err, identity.ErrNotVerified):
		return fiber.NewError(http.StatusForbidden, "phone number not verified")
	case err != nil:
		return fiber.NewError(http.StatusUnauthorized, "invalid phone or password")
	}
	return h.grant(c, user)
}

// signup accepts phone and password plus any number of flat profile fields.
func (h *handler) signup(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	phone, _ := body["phone"].(string)
	password, _ := body["password"].(string)
	delete(body, "phone")
	delete(body, "password")

	user, err := h.ids.Register(c.UserContext(), identity.Credentials{Phone: phone, Password: password}, body)
	switch {
	case errors.Is(err, identity.ErrExists):
		return fiber.NewError(http.StatusConflict, "phone number already registered")
	case errors.Is(err, identity.ErrMissingFields):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}

	h.logger.Info("member registered", slog.String("user_id", user.ID))
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"userProfile": user.PublicProfile(),
		"phone":       user.Phone,
	})
}

func (h *handler) requestOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return fiber.NewError(http.StatusBadRequest, "phone is required")
	}
	if !h.ids.Exists(c.UserContext(), phone) {
		return fiber.NewError(http.StatusBadRequest, "phone number not registered")
	}

	code, err := h.otps.issue(phone)
	if err != nil {
		return err
	}
	msg := notification.Message{
		Kind:        notification.KindOTP,
		Destination: phone,
		Body:        fmt.Sprintf("Your verification code is %s", code),
	}
	if err := h.notifier.Send(c.UserContext(), msg); err != nil {
		h.logger.Warn("otp delivery failed", slog.Any("error", err))
		return c.JSON(fiber.Map{"sent": false})
	}
	return c.JSON(fiber.Map{"sent": true})
}

func (h *handler) verifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" || strings.TrimSpace(req.Code) == "" {
		return fiber.NewError(http.StatusBadRequest, "phone and code are required")
	}

	switch err := h.otps.verify(phone, req.Code); {
	case errors.Is(err, ErrCodeExpired):
		return newAPIError(http.StatusGone, "verification code expired, request a new one", CodeOTPExpired)
	case errors.Is(err, ErrCodeMismatch):
		return fiber.NewError(http.StatusUnauthorized, "incorrect verification code")
	}

	user, err := h.ids.Verify(c.UserContext(), phone)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "phone number not registered")
	}
	return h.grant(c, user)
}

func (h *handler) grant(c *fiber.Ctx, user identity.User) error {
	token, err := h.tokens.issue(user)
	if err != nil {
		return err
	}
	return c.JSON(grantResponse{AccessToken: token, UserProfile: user.PublicProfile()})
}
