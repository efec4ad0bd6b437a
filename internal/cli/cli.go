// Package cli is the terminal front end for the auth flows. Prompts and
// results go to the writer given to New; logs stay on stderr.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sangathan/sangathan/internal/auth"
	"github.com/sangathan/sangathan/internal/autherr"
	"github.com/sangathan/sangathan/internal/validate"
)

const usage = `usage: sangathan <command> [flags]

commands:
  login    -phone P [-password X]          sign in with phone and password
  signup   -phone P -name N [-field k=v]   create an account and verify the phone
  whoami                                   show the signed-in member
  logout                                   forget the saved session
`

// ErrUsage is returned for unknown commands or bad flags.
var ErrUsage = errors.New("usage")

// App runs one command against an orchestrator.
type App struct {
	orch *auth.Orchestrator
	in   *bufio.Reader
	out  io.Writer
}

// New builds an App reading answers from in and printing to out.
func New(orch *auth.Orchestrator, in io.Reader, out io.Writer) *App {
	return &App{orch: orch, in: bufio.NewReader(in), out: out}
}

// Run dispatches args[0] to its command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}
	switch args[0] {
	case "login":
		return a.login(ctx, args[1:])
	case "signup":
		return a.signup(ctx, args[1:])
	case "whoami":
		return a.whoami(ctx)
	case "logout":
		if err := a.orch.Logout(ctx); err != nil {
			a.fail(err)
			return err
		}
		fmt.Fprintln(a.out, "Signed out.")
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprintf(a.out, "unknown command %q\n\n%s", args[0], usage)
		return ErrUsage
	}
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	phone := fs.String("phone", "", "phone number")
	password := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if *password == "" {
		*password = a.prompt("Password: ")
	}

	sess, err := a.orch.Login(ctx, validate.Credentials{Phone: *phone, Password: *password})
	if err != nil {
		a.fail(err)
		return err
	}
	fmt.Fprintf(a.out, "Welcome back, %s.\n", displayName(sess.UserProfile))
	return nil
}

// profileFields collects repeatable -field key=value flags.
type profileFields map[string]any

func (p profileFields) String() string { return "" }

func (p profileFields) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	p[strings.TrimSpace(key)] = value
	return nil
}

func (a *App) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	fs.SetOutput(a.out)
	phone := fs.String("phone", "", "phone number")
	password := fs.String("password", "", "password (prompted when empty)")
	name := fs.String("name", "", "full name")
	fields := profileFields{}
	fs.Var(fields, "field", "extra profile field as key=value, repeatable")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if *password == "" {
		*password = a.prompt("Choose a password: ")
	}
	if *name != "" {
		fields["name"] = *name
	}

	req := validate.SignupRequest{
		Credentials: validate.Credentials{Phone: *phone, Password: *password},
		Profile:     fields,
	}
	ch, err := a.orch.Signup(ctx, req)
	if err != nil {
		a.fail(err)
		// The account may exist with no code sent yet; let the user resend.
		if a.orch.Status().PendingPhone == "" {
			return err
		}
	} else {
		fmt.Fprintf(a.out, "A verification code was sent to %s.\n", ch.Phone)
	}
	return a.codeEntry(ctx)
}

// codeEntry loops until the phone is verified, the challenge is lost, or the
// user quits.
func (a *App) codeEntry(ctx context.Context) error {
	for {
		st := a.orch.Status()
		if st.PendingPhone == "" {
			return auth.ErrNoChallenge
		}
		line := a.prompt("Enter code ('resend' for a new one, 'quit' to stop): ")
		switch strings.ToLower(line) {
		case "", "quit", "q":
			a.orch.Abandon()
			fmt.Fprintln(a.out, "Verification abandoned. Sign up again to get a new code.")
			return context.Canceled
		case "resend", "r":
			if err := a.orch.ResendOTP(ctx); err != nil {
				a.fail(err)
				continue
			}
			fmt.Fprintln(a.out, "A new code is on its way.")
			continue
		}

		if a.orch.Status().Signup != auth.StateOTPRequested {
			fmt.Fprintln(a.out, "No code has been sent yet. Type 'resend' first.")
			continue
		}
		sess, err := a.orch.VerifyOTP(ctx, line)
		if err == nil {
			fmt.Fprintf(a.out, "Phone verified. Welcome, %s.\n", displayName(sess.UserProfile))
			return nil
		}
		a.fail(err)
		if errors.Is(err, autherr.ErrOTPExpired) || a.orch.Status().PendingPhone == "" {
			return err
		}
	}
}

func (a *App) whoami(ctx context.Context) error {
	sess, ok, err := a.orch.Bootstrap(ctx)
	if err != nil {
		a.fail(err)
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}

	var profile map[string]any
	if err := json.Unmarshal(sess.UserProfile, &profile); err != nil {
		fmt.Fprintln(a.out, string(sess.UserProfile))
		return nil
	}
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(a.out, "Signed in as %s\n", displayName(sess.UserProfile))
	for _, k := range keys {
		fmt.Fprintf(a.out, "  %-10s %v\n", k, profile[k])
	}
	return nil
}

func (a *App) prompt(label string) string {
	fmt.Fprint(a.out, label)
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}

// fail prints a user-facing explanation of err.
func (a *App) fail(err error) {
	var ae *autherr.Error
	switch {
	case errors.Is(err, auth.ErrInFlight):
		fmt.Fprintln(a.out, "Still working on the previous request.")
	case len(autherr.Fields(err)) > 0:
		fmt.Fprintf(a.out, "Please check: %s\n%v\n", strings.Join(autherr.Fields(err), ", "), err)
	case errors.Is(err, autherr.ErrOTPExpired):
		fmt.Fprintln(a.out, "That code has expired. Please sign up again.")
	case errors.As(err, &ae) && ae.Kind == autherr.KindRateLimit:
		fmt.Fprintln(a.out, "Too many attempts. Wait a minute and try again.")
	case errors.As(err, &ae) && ae.Kind == autherr.KindNetwork:
		fmt.Fprintf(a.out, "Could not reach the server: %s\n", ae.Msg)
	case errors.As(err, &ae) && ae.Kind == autherr.KindStorage:
		fmt.Fprintf(a.out, "The session on this device could not be accessed: %s\n", ae.Msg)
	default:
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
}

func displayName(profile []byte) string {
	var p struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	_ = json.Unmarshal(profile, &p)
	switch {
	case p.Name != "":
		return p.Name
	case p.Phone != "":
		return p.Phone
	default:
		return "member"
	}
}
