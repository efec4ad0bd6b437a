package gateway

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/sangathan/sangathan/internal/validate"
)

// Operation names, used to tag errors and log lines.
const (
	OpLogin      = "login"
	OpSignup     = "signup"
	OpRequestOTP = "requestOtp"
	OpVerifyOTP  = "verifyOtp"
)

// Grant is the result of a successful login or OTP verification.
type Grant struct {
	AccessToken string          `json:"accessToken"`
	UserProfile json.RawMessage `json:"userProfile"`
}

// Registration is the result of a successful signup. Phone is the number the
// OTP challenge must target.
type Registration struct {
	UserProfile json.RawMessage `json:"userProfile"`
	Phone       string          `json:"phone"`
}

// OTPDispatch reports whether the server sent a code.
type OTPDispatch struct {
	Sent bool `json:"sent"`
}

// Gateway is the remote auth API. Implementations must not retry; failures
// are returned as *autherr.Error values of kind Validation, Auth, RateLimit or
// Network.
type Gateway interface {
	Login(ctx context.Context, creds validate.Credentials) (Grant, error)
	Signup(ctx context.Context, req validate.SignupRequest) (Registration, error)
	RequestOTP(ctx context.Context, phone string) (OTPDispatch, error)
	VerifyOTP(ctx context.Context, phone, code string) (Grant, error)
}
