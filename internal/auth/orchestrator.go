package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sangathan/sangathan/internal/autherr"
	"github.com/sangathan/sangathan/internal/gateway"
	"github.com/sangathan/sangathan/internal/session"
	"github.com/sangathan/sangathan/internal/validate"
)

// Challenge is the pending OTP target. It is only meaningful for Phone.
type Challenge struct {
	Phone    string
	IssuedAt time.Time
	Resends  int
}

// Orchestrator sequences credential submission, OTP exchange and session
// persistence. It keeps no copy of the session; the store is the only owner.
type Orchestrator struct {
	gateway   gateway.Gateway
	store     session.Store
	validator *validate.Validator
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	ops       map[string]OperationState
	login     State
	signup    State
	challenge *Challenge
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithValidator replaces the default credential validator.
func WithValidator(v *validate.Validator) Option {
	return func(o *Orchestrator) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithClock overrides time.Now, used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an orchestrator with both flows idle.
func New(gw gateway.Gateway, store session.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:   gw,
		store:     store,
		validator: validate.New(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		ops:       make(map[string]OperationState, len(operations)),
		login:     StateIdle,
		signup:    StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// begin claims the slot for op. It fails with ErrInFlight if the slot is busy.
// onStart runs under the lock after the slot is reset.
func (o *Orchestrator) begin(op string, onStart func() error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ops[op].Loading {
		return ErrInFlight
	}
	if onStart != nil {
		if err := onStart(); err != nil {
			return err
		}
	}
	o.ops[op] = OperationState{Loading: true}
	return nil
}

// resolve records the outcome of op. apply runs under the lock.
func (o *Orchestrator) resolve(op string, remote, invalid error, apply func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if apply != nil {
		apply()
	}
	o.ops[op] = OperationState{Err: remote, Invalid: invalid}
}

// Login runs the login flow: validate, call the gateway, persist the session.
// The user is authenticated only once the session is saved.
func (o *Orchestrator) Login(ctx context.Context, creds validate.Credentials) (session.Session, error) {
	if err := o.begin(OpLogin, func() error {
		o.login = StateSubmitting
		return nil
	}); err != nil {
		return session.Session{}, err
	}

	creds, err := o.validator.Login(creds)
	if err != nil {
		o.resolve(OpLogin, nil, err, func() { o.login = StateFailed })
		return session.Session{}, err
	}

	grant, err := o.gateway.Login(ctx, creds)
	if err != nil {
		err = autherr.WithOp(OpLogin, err)
		o.logger.Info("login failed", slog.String("phone", maskPhone(creds.Phone)), slog.Any("error", err))
		o.resolve(OpLogin, err, nil, func() { o.login = StateFailed })
		return session.Session{}, err
	}

	sess, err := o.persist(ctx, OpLogin, grant)
	if err != nil {
		o.logger.Error("login succeeded remotely but session was not saved", slog.Any("error", err))
		o.resolve(OpLogin, err, nil, func() { o.login = StateFailed })
		return session.Session{}, err
	}

	o.logger.Info("login completed", slog.String("phone", maskPhone(creds.Phone)))
	o.resolve(OpLogin, nil, nil, func() { o.login = StateAuthenticated })
	return sess, nil
}

// Signup registers the account and then requests an OTP for the phone the
// gateway returned. On success the flow waits in StateOTPRequested.
func (o *Orchestrator) Signup(ctx context.Context, req validate.SignupRequest) (Challenge, error) {
	if err := o.begin(OpSignup, func() error {
		// A verification in flight still owns the challenge.
		if o.ops[OpVerifyOTP].Loading {
			return ErrInFlight
		}
		o.signup = StateSigningUp
		o.challenge = nil
		return nil
	}); err != nil {
		return Challenge{}, err
	}

	req, err := o.validator.Signup(req)
	if err != nil {
		o.resolve(OpSignup, nil, err, func() { o.signup = StateFailed })
		return Challenge{}, err
	}

	reg, err := o.gateway.Signup(ctx, req)
	if err != nil {
		err = autherr.WithOp(OpSignup, err)
		o.logger.Info("signup failed", slog.String("phone", maskPhone(req.Phone)), slog.Any("error", err))
		o.resolve(OpSignup, err, nil, func() { o.signup = StateFailed })
		return Challenge{}, err
	}

	phone := validate.NormalizePhone(reg.Phone)
	if phone == "" {
		phone = req.Phone
	}

	if err := o.requestOTP(ctx, phone); err != nil {
		o.logger.Warn("otp request after signup failed", slog.String("phone", maskPhone(phone)), slog.Any("error", err))
		// The account exists, so the phone is kept for ResendOTP.
		o.resolve(OpSignup, err, nil, func() {
			o.signup = StateFailed
			o.challenge = &Challenge{Phone: phone}
		})
		return Challenge{}, err
	}

	ch := Challenge{Phone: phone, IssuedAt: o.now()}
	o.logger.Info("signup completed, otp requested", slog.String("phone", maskPhone(phone)))
	o.resolve(OpSignup, nil, nil, func() {
		o.signup = StateOTPRequested
		o.challenge = &ch
	})
	return ch, nil
}

// ResendOTP requests a new code for the pending phone without changing the
// flow, except that a signup whose first OTP request failed moves on to
// StateOTPRequested.
func (o *Orchestrator) ResendOTP(ctx context.Context) error {
	var phone string
	if err := o.begin(OpResendOTP, func() error {
		if o.challenge == nil || o.signup == StateSigningUp {
			return ErrNoChallenge
		}
		phone = o.challenge.Phone
		return nil
	}); err != nil {
		return err
	}

	if err := o.requestOTP(ctx, phone); err != nil {
		o.resolve(OpResendOTP, err, nil, nil)
		return err
	}

	o.resolve(OpResendOTP, nil, nil, func() {
		if o.challenge == nil || o.challenge.Phone != phone {
			return
		}
		o.challenge.IssuedAt = o.now()
		o.challenge.Resends++
		if o.signup == StateFailed {
			o.signup = StateOTPRequested
		}
	})
	return nil
}

// VerifyOTP submits code for the pending challenge.
func (o *Orchestrator) VerifyOTP(ctx context.Context, code string) (session.Session, error) {
	return o.verify(ctx, "", code)
}

// VerifyOTPFor submits code and checks that phone is the challenge's phone.
// A mismatch fails locally without a gateway call.
func (o *Orchestrator) VerifyOTPFor(ctx context.Context, phone, code string) (session.Session, error) {
	if phone == "" {
		return session.Session{}, autherr.Invalid("phone", "phone is required")
	}
	return o.verify(ctx, phone, code)
}

func (o *Orchestrator) verify(ctx context.Context, phone, code string) (session.Session, error) {
	var pending string
	if err := o.begin(OpVerifyOTP, func() error {
		if o.challenge == nil || o.signup != StateOTPRequested {
			return ErrNoChallenge
		}
		pending = o.challenge.Phone
		o.signup = StateVerifying
		return nil
	}); err != nil {
		return session.Session{}, err
	}

	backToCodeEntry := func() { o.signup = StateOTPRequested }

	if phone != "" && validate.NormalizePhone(phone) != pending {
		err := autherr.Invalid("phone", "code was issued for a different phone")
		o.resolve(OpVerifyOTP, nil, err, backToCodeEntry)
		return session.Session{}, err
	}

	code, err := o.validator.OTP(code)
	if err != nil {
		o.resolve(OpVerifyOTP, nil, err, backToCodeEntry)
		return session.Session{}, err
	}

	grant, err := o.gateway.VerifyOTP(ctx, pending, code)
	if err != nil {
		err = autherr.WithOp(OpVerifyOTP, err)
		if errors.Is(err, autherr.ErrOTPExpired) {
			o.logger.Info("otp expired, signup must restart", slog.String("phone", maskPhone(pending)))
			o.resolve(OpVerifyOTP, err, nil, func() {
				o.signup = StateFailed
				o.challenge = nil
			})
			return session.Session{}, err
		}
		o.logger.Info("otp rejected", slog.String("phone", maskPhone(pending)), slog.Any("error", err))
		o.resolve(OpVerifyOTP, err, nil, backToCodeEntry)
		return session.Session{}, err
	}

	sess, err := o.persist(ctx, OpVerifyOTP, grant)
	if err != nil {
		// The server consumed the code; the user has to log in instead.
		o.logger.Error("otp verified but session was not saved", slog.Any("error", err))
		o.resolve(OpVerifyOTP, err, nil, func() {
			o.signup = StateFailed
			o.challenge = nil
		})
		return session.Session{}, err
	}

	o.logger.Info("otp verified", slog.String("phone", maskPhone(pending)))
	o.resolve(OpVerifyOTP, nil, nil, func() {
		o.signup = StateAuthenticated
		o.challenge = nil
	})
	return sess, nil
}

// Abandon drops the pending challenge when the user leaves the code step.
func (o *Orchestrator) Abandon() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ops[OpSignup].Loading || o.ops[OpVerifyOTP].Loading {
		return
	}
	o.challenge = nil
	o.signup = StateIdle
}

// Current returns the persisted session, if any.
func (o *Orchestrator) Current(ctx context.Context) (session.Session, bool, error) {
	sess, ok, err := o.store.Load(ctx)
	if err != nil {
		return session.Session{}, false, autherr.WithOp("current", err)
	}
	return sess, ok, nil
}

// Bootstrap reads the persisted session at startup. A JWT access token whose
// exp has passed is cleared and reported absent. Opaque tokens are kept.
func (o *Orchestrator) Bootstrap(ctx context.Context) (session.Session, bool, error) {
	sess, ok, err := o.store.Load(ctx)
	if err != nil {
		return session.Session{}, false, autherr.WithOp("bootstrap", err)
	}
	if !ok {
		return session.Session{}, false, nil
	}
	if tokenExpired(sess.AccessToken, o.now()) {
		o.logger.Info("persisted session expired, clearing")
		if err := o.store.Clear(ctx); err != nil {
			return session.Session{}, false, autherr.WithOp("bootstrap", err)
		}
		return session.Session{}, false, nil
	}
	return sess, true, nil
}

// Logout clears the persisted session and returns both flows to idle.
func (o *Orchestrator) Logout(ctx context.Context) error {
	if err := o.store.Clear(ctx); err != nil {
		return autherr.WithOp("logout", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.login = StateIdle
	o.signup = StateIdle
	o.challenge = nil
	return nil
}

// Invalidate is called by a collaborator whose request was rejected because
// the token is invalid or expired.
func (o *Orchestrator) Invalidate(ctx context.Context, reason string) error {
	o.logger.Warn("session invalidated", slog.String("reason", reason))
	return o.Logout(ctx)
}

// Status returns a snapshot for rendering.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		Login:  o.login,
		Signup: o.signup,
		Ops:    make(map[string]OperationState, len(operations)),
	}
	if o.challenge != nil {
		st.PendingPhone = o.challenge.Phone
	}
	for _, op := range operations {
		st.Ops[op] = o.ops[op]
	}
	return st
}

func (o *Orchestrator) requestOTP(ctx context.Context, phone string) error {
	dispatch, err := o.gateway.RequestOTP(ctx, phone)
	if err != nil {
		return autherr.WithOp(gateway.OpRequestOTP, err)
	}
	if !dispatch.Sent {
		return &autherr.Error{Kind: autherr.KindNetwork, Op: gateway.OpRequestOTP, Msg: "code was not sent"}
	}
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, op string, grant gateway.Grant) (session.Session, error) {
	sess := session.Session{UserProfile: grant.UserProfile, AccessToken: grant.AccessToken}
	if len(sess.UserProfile) == 0 {
		sess.UserProfile = []byte("{}")
	}
	if err := o.store.Save(ctx, sess); err != nil {
		return session.Session{}, autherr.WithOp(op, err)
	}
	return sess, nil
}

func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return "***"
	}
	return "***" + phone[len(phone)-3:]
}
