package gatewaystub

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sangathan/sangathan/internal/notification"
)

const (
	testPhone    = "9800000000"
	testPassword = "Secret123!"
	testCode     = "482913"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestApp(t *testing.T, mutate func(*Options)) (*fiber.App, *notification.Recorder, *testClock) {
	t.Helper()
	rec := notification.NewRecorder()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	opts := Options{
		Notifier: rec,
		Codes:    func() (string, error) { return testCode, nil },
		Now:      clock.Now,
		FastHash: true,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts), rec, clock
}

func call(t *testing.T, app *fiber.App, path string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(payload)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode %s response %q: %v", path, data, err)
		}
	}
	return resp.StatusCode, out
}

func signup(t *testing.T, app *fiber.App) {
	t.Helper()
	status, body := call(t, app, "/auth/signup", map[string]any{
		"phone": testPhone, "password": testPassword, "name": "Sita", "ward": 4,
	})
	if status != http.StatusCreated {
		t.Fatalf("signup: expected 201 got %d %v", status, body)
	}
}

func TestSignupVerifyThenLogin(t *testing.T) {
	app, rec, _ := newTestApp(t, nil)
	signup(t, app)

	if status, body := call(t, app, "/auth/login", map[string]any{"phone": testPhone, "password": testPassword}); status != http.StatusForbidden {
		t.Fatalf("unverified login: expected 403 got %d %v", status, body)
	}

	status, body := call(t, app, "/auth/otp/request", map[string]any{"phone": testPhone})
	if status != http.StatusOK || body["sent"] != true {
		t.Fatalf("request otp: %d %v", status, body)
	}
	msg, ok := rec.Last(testPhone)
	if !ok || msg.Kind != notification.KindOTP || !strings.Contains(msg.Body, testCode) {
		t.Fatalf("expected otp sms, got %+v", msg)
	}

	status, body = call(t, app, "/auth/otp/verify", map[string]any{"phone": testPhone, "code": testCode})
	if status != http.StatusOK {
		t.Fatalf("verify: %d %v", status, body)
	}
	profile, _ := body["userProfile"].(map[string]any)
	if profile["name"] != "Sita" || profile["verified"] != true {
		t.Fatalf("unexpected profile %v", profile)
	}
	if _, hasPassword := profile["password"]; hasPassword {
		t.Fatalf("password leaked into profile")
	}

	status, body = call(t, app, "/auth/login", map[string]any{"phone": testPhone, "password": testPassword})
	if status != http.StatusOK {
		t.Fatalf("login: %d %v", status, body)
	}
	token, _ := body["accessToken"].(string)
	if token == "" {
		t.Fatalf("missing access token")
	}
}

func TestAccessTokenClaims(t *testing.T) {
	app, _, clock := newTestApp(t, func(o *Options) { o.AccessTokenTTL = time.Hour })
	signup(t, app)
	call(t, app, "/auth/otp/request", map[string]any{"phone": testPhone})
	_, body := call(t, app, "/auth/otp/verify", map[string]any{"phone": testPhone, "code": testCode})

	tokens := tokenIssuer{secret: []byte("dev-secret"), ttl: time.Hour, now: clock.Now}
	claims, err := tokens.parse(body["accessToken"].(string))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims["phone"] != testPhone {
		t.Fatalf("unexpected claims %v", claims)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || !exp.Time.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected exp %v (%v)", exp, err)
	}

	clock.now = clock.now.Add(2 * time.Hour)
	if _, err := tokens.parse(body["accessToken"].(string)); err == nil {
		t.Fatalf("expected expired token to fail parsing")
	}
}

func TestSignupErrors(t *testing.T) {
	app, _, _ := newTestApp(t, nil)
	signup(t, app)

	status, body := call(t, app, "/auth/signup", map[string]any{"phone": testPhone, "password": testPassword})
	if status != http.StatusConflict || body["error"] == "" {
		t.Fatalf("duplicate: expected 409 got %d %v", status, body)
	}
	if status, _ := call(t, app, "/auth/signup", map[string]any{"phone": "9811111111"}); status != http.StatusBadRequest {
		t.Fatalf("missing password: expected 400 got %d", status)
	}
}

func TestVerifyWrongCodeUntilLocked(t *testing.T) {
	app, _, _ := newTestApp(t, func(o *Options) { o.OTPMaxAttempts = 2 })
	signup(t, app)
	call(t, app, "/auth/otp/request", map[string]any{"phone": testPhone})

	status, body := call(t, app, "/auth/otp/verify", map[string]any{"phone": testPhone, "code": "000000"})
	if status != http.StatusUnauthorized || body["code"] != nil {
		t.Fatalf("first wrong code: expected plain 401 got %d %v", status, body)
	}
	status, body = call(t, app, "/auth/otp/verify", map[string]any{"phone": testPhone, "code": "000000"})
	if status != http.StatusGone || body["code"] != CodeOTPExpired {
		t.Fatalf("locked challenge: expected 410 otp_expired got %d %v", status, body)
	}
	status, _ = call(t, app, "/auth/otp/verify", map[string]any{"phone": testPhone, "code": testCode})
	if status != http.StatusGone {
		t.Fatalf("correct code after lock must stay expired, got %d", status)
	}
}

func TestVerifyAfterTTL(t *testing.T) {
	app, _, clock := newTestApp(t, func(o *Options) { o.OTPTTL = time.Minute })
	signup(t, app)
	call(t, app, "/auth/otp/request", map[string]any{"phone": testPhone})

	clock.now = clock.now.Add(2 * time.Minute)
	status, body := call(t, app, "/auth/otp/verify", map[string]any{"phone": testPhone, "code": testCode})
	if status != http.StatusGone || body["code"] != CodeOTPExpired {
		t.Fatalf("expected otp_expired, got %d %v", status, body)
	}

	call(t, app, "/auth/otp/request", map[string]any{"phone": testPhone})
	if status, _ := call(t, app, "/auth/otp/verify", map[string]any{"phone": testPhone, "code": testCode}); status != http.StatusOK {
		t.Fatalf("fresh code should verify, got %d", status)
	}
}

func TestRequestOTPUnknownPhone(t *testing.T) {
	app, rec, _ := newTestApp(t, nil)
	status, _ := call(t, app, "/auth/otp/request", map[string]any{"phone": "9822222222"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", status)
	}
	if _, ok := rec.Last("9822222222"); ok {
		t.Fatalf("no sms for unknown phones")
	}
}

func TestRequestOTPThrottledWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app, _, _ := newTestApp(t, func(o *Options) {
		o.Cache = cache
		o.OTPRequestsPerWindow = 1
	})
	signup(t, app)

	if status, _ := call(t, app, "/auth/otp/request", map[string]any{"phone": testPhone}); status != http.StatusOK {
		t.Fatalf("first request: %d", status)
	}
	status, body := call(t, app, "/auth/otp/request", map[string]any{"phone": testPhone})
	if status != http.StatusTooManyRequests || body["error"] == "" {
		t.Fatalf("expected 429 with error body, got %d %v", status, body)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200 got %d", resp.StatusCode)
	}
}

func TestMalformedBody(t *testing.T) {
	app, _, _ := newTestApp(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.StatusCode)
	}
}

func TestRandomDigits(t *testing.T) {
	code, err := RandomDigits(6)()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		t.Fatalf("unexpected code %q", code)
	}
}
