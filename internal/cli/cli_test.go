package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/sangathan/sangathan/internal/auth"
	"github.com/sangathan/sangathan/internal/gateway"
	"github.com/sangathan/sangathan/internal/gatewaystub"
	"github.com/sangathan/sangathan/internal/session"
)

const testCode = "271828"

type fiberDoer struct{ app *fiber.App }

func (d fiberDoer) Do(req *http.Request) (*http.Response, error) { return d.app.Test(req, -1) }

func newOrchestrator(t *testing.T) (*auth.Orchestrator, *session.MemoryStore) {
	t.Helper()
	app := gatewaystub.New(gatewaystub.Options{
		Codes:    func() (string, error) { return testCode, nil },
		FastHash: true,
	})
	store := session.NewMemoryStore()
	gw := gateway.NewHTTP("http://stub.local", fiberDoer{app: app}, nil)
	return auth.New(gw, store), store
}

func run(t *testing.T, orch *auth.Orchestrator, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := New(orch, strings.NewReader(stdin), &out).Run(context.Background(), args)
	return out.String(), err
}

func TestSignupWhoamiLogoutLogin(t *testing.T) {
	orch, store := newOrchestrator(t)

	out, err := run(t, orch, "000000\nresend\n"+testCode+"\n",
		"signup", "-phone", "980-000-0000", "-password", "Secret123!", "-name", "Sita", "-field", "ward=4")
	if err != nil {
		t.Fatalf("signup: %v\n%s", err, out)
	}
	for _, want := range []string{"code was sent to 9800000000", "incorrect verification code", "new code is on its way", "Phone verified. Welcome, Sita."} {
		if !strings.Contains(out, want) {
			t.Fatalf("signup output missing %q:\n%s", want, out)
		}
	}
	if store.Saves() != 1 {
		t.Fatalf("expected one saved session, got %d", store.Saves())
	}

	out, err = run(t, orch, "", "whoami")
	if err != nil || !strings.Contains(out, "Signed in as Sita") || !strings.Contains(out, "ward") {
		t.Fatalf("whoami: %v\n%s", err, out)
	}

	if out, err = run(t, orch, "", "logout"); err != nil || !strings.Contains(out, "Signed out.") {
		t.Fatalf("logout: %v\n%s", err, out)
	}
	if out, _ = run(t, orch, "", "whoami"); !strings.Contains(out, "Not signed in.") {
		t.Fatalf("whoami after logout:\n%s", out)
	}

	out, err = run(t, orch, "Secret123!\n", "login", "-phone", "9800000000")
	if err != nil || !strings.Contains(out, "Welcome back, Sita.") {
		t.Fatalf("login: %v\n%s", err, out)
	}
}

func TestSignupQuitAbandonsChallenge(t *testing.T) {
	orch, _ := newOrchestrator(t)
	out, err := run(t, orch, "quit\n", "signup", "-phone", "9800000000", "-password", "Secret123!", "-name", "Sita")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancel, got %v\n%s", err, out)
	}
	st := orch.Status()
	if st.Signup != auth.StateIdle || st.PendingPhone != "" {
		t.Fatalf("expected abandoned flow, got %+v", st)
	}
}

func TestSignupValidationStopsBeforeCodeEntry(t *testing.T) {
	orch, _ := newOrchestrator(t)
	out, err := run(t, orch, "", "signup", "-phone", "12", "-password", "short")
	if err == nil {
		t.Fatalf("expected validation error\n%s", out)
	}
	if strings.Contains(out, "Enter code") {
		t.Fatalf("no code prompt after a local validation failure:\n%s", out)
	}
}

func TestLoginUnknownMember(t *testing.T) {
	orch, _ := newOrchestrator(t)
	out, err := run(t, orch, "", "login", "-phone", "9800000000", "-password", "Secret123!")
	if err == nil || !strings.Contains(out, "Error:") {
		t.Fatalf("expected auth failure, got %v\n%s", err, out)
	}
	if orch.Status().Login != auth.StateFailed {
		t.Fatalf("expected failed login flow, got %s", orch.Status().Login)
	}
}

func TestUnknownCommand(t *testing.T) {
	orch, _ := newOrchestrator(t)
	if _, err := run(t, orch, "", "dance"); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := run(t, orch, ""); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error for no args, got %v", err)
	}
}
