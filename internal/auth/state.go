package auth

import (
	"errors"

	"github.com/sangathan/sangathan/internal/gateway"
)

// State is a position in the login or signup flow.
type State string

const (
	StateIdle          State = "idle"
	StateSubmitting    State = "submitting"
	StateSigningUp     State = "signing_up"
	StateOTPRequested  State = "otp_requested"
	StateVerifying     State = "verifying"
	StateAuthenticated State = "authenticated"
	StateFailed        State = "failed"
)

// Exposed operations. Each owns one OperationState slot.
const (
	OpLogin     = gateway.OpLogin
	OpSignup    = gateway.OpSignup
	OpVerifyOTP = gateway.OpVerifyOTP
	OpResendOTP = "resendOtp"
)

var operations = []string{OpLogin, OpSignup, OpVerifyOTP, OpResendOTP}

var (
	// ErrInFlight is returned, without side effects, when an operation is
	// submitted while a previous attempt of the same operation is loading, or
	// a signup is started while a code verification is loading.
	ErrInFlight = errors.New("operation already in progress")
	// ErrNoChallenge is returned when a code is submitted or resent with no
	// pending OTP challenge.
	ErrNoChallenge = errors.New("no pending otp challenge")
)

// OperationState is the UI-facing progress of one operation.
type OperationState struct {
	Loading bool
	// Err holds a remote or storage failure.
	Err error
	// Invalid holds a local validation failure. It never shares a slot with Err.
	Invalid error
}

// Message returns the text to show for the last failure, if any.
func (s OperationState) Message() string {
	switch {
	case s.Invalid != nil:
		return s.Invalid.Error()
	case s.Err != nil:
		return s.Err.Error()
	default:
		return ""
	}
}

// Status is a snapshot of both flows.
type Status struct {
	Login        State
	Signup       State
	PendingPhone string
	Ops          map[string]OperationState
}
