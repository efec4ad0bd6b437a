package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/sangathan/sangathan/internal/autherr"
	"github.com/sangathan/sangathan/internal/validate"
)

const (
	requestIDHeader = "X-Request-ID"
	// CodeOTPExpired is the error body code for a permanently expired challenge.
	CodeOTPExpired = "otp_expired"

	pathLogin      = "/auth/login"
	pathSignup     = "/auth/signup"
	pathRequestOTP = "/auth/otp/request"
	pathVerifyOTP  = "/auth/otp/verify"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrorBody is the JSON error envelope returned by the auth API.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HTTPGateway talks to the auth API over JSON/HTTP.
type HTTPGateway struct {
	baseURL string
	client  Doer
	logger  *slog.Logger
}

// NewHTTP builds an HTTP gateway. A nil client gets a 30s-timeout http.Client.
func NewHTTP(baseURL string, client Doer, logger *slog.Logger) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPGateway{baseURL: strings.TrimRight(baseURL, "/"), client: client, logger: logger}
}

type loginRequest struct {
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

// Login posts credentials and returns the issued grant.
func (g *HTTPGateway) Login(ctx context.Context, creds validate.Credentials) (Grant, error) {
	var out Grant
	err := g.post(ctx, OpLogin, pathLogin, loginRequest{Phone: creds.Phone, Password: creds.Password}, &out)
	if err != nil {
		return Grant{}, err
	}
	if out.AccessToken == "" {
		return Grant{}, malformed(OpLogin, "missing accessToken")
	}
	return out, nil
}

// Signup registers the account. Profile fields are sent alongside the
// credentials at the top level of the body.
func (g *HTTPGateway) Signup(ctx context.Context, req validate.SignupRequest) (Registration, error) {
	body := make(map[string]any, len(req.Profile)+2)
	for k, v := range req.Profile {
		body[k] = v
	}
	body["phone"] = req.Phone
	body["password"] = req.Password

	var out Registration
	if err := g.post(ctx, OpSignup, pathSignup, body, &out); err != nil {
		return Registration{}, err
	}
	return out, nil
}

// RequestOTP asks the server to send a code to phone.
func (g *HTTPGateway) RequestOTP(ctx context.Context, phone string) (OTPDispatch, error) {
	var out OTPDispatch
	if err := g.post(ctx, OpRequestOTP, pathRequestOTP, otpRequest{Phone: phone}, &out); err != nil {
		return OTPDispatch{}, err
	}
	return out, nil
}

// VerifyOTP exchanges a code for a grant.
func (g *HTTPGateway) VerifyOTP(ctx context.Context, phone, code string) (Grant, error) {
	var out Grant
	if err := g.post(ctx, OpVerifyOTP, pathVerifyOTP, verifyRequest{Phone: phone, Code: code}, &out); err != nil {
		return Grant{}, err
	}
	if out.AccessToken == "" {
		return Grant{}, malformed(OpVerifyOTP, "missing accessToken")
	}
	return out, nil
}

func (g *HTTPGateway) post(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &autherr.Error{Kind: autherr.KindNetwork, Op: op, Msg: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &autherr.Error{Kind: autherr.KindNetwork, Op: op, Msg: "build request", Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, reqID)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("gateway request failed",
			slog.String("op", op),
			slog.String("request_id", reqID),
			slog.Any("error", err),
		)
		return &autherr.Error{Kind: autherr.KindNetwork, Op: op, Msg: "transport", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &autherr.Error{Kind: autherr.KindNetwork, Op: op, Msg: "read response", Err: err}
	}

	g.logger.Debug("gateway request completed",
		slog.String("op", op),
		slog.String("request_id", reqID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &autherr.Error{Kind: autherr.KindNetwork, Op: op, Msg: "decode response", Err: err}
	}
	return nil
}

// statusError maps an HTTP failure onto an error kind.
func statusError(op string, status int, body []byte) error {
	var eb ErrorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.Error
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	e := &autherr.Error{Op: op, Msg: msg}
	switch {
	case status == http.StatusGone || eb.Code == CodeOTPExpired:
		e.Kind = autherr.KindAuth
		e.Err = autherr.ErrOTPExpired
	case status == http.StatusTooManyRequests:
		e.Kind = autherr.KindRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = autherr.KindAuth
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		e.Kind = autherr.KindValidation
	default:
		e.Kind = autherr.KindNetwork
		e.Err = fmt.Errorf("unexpected status %d", status)
	}
	return e
}

func malformed(op, msg string) error {
	return &autherr.Error{Kind: autherr.KindNetwork, Op: op, Msg: "malformed response: " + msg}
}
