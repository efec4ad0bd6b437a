package validate

import (
	"slices"
	"testing"

	"github.com/sangathan/sangathan/internal/autherr"
)

func TestLoginNormalizesPhone(t *testing.T) {
	v := New()
	creds, err := v.Login(Credentials{Phone: " 980-000 0000 ", Password: "Secret123!"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if creds.Phone != "9800000000" {
		t.Fatalf("expected normalized phone, got %q", creds.Phone)
	}
}

func TestLoginRejectsBadShapes(t *testing.T) {
	v := New()
	cases := []struct {
		name  string
		creds Credentials
		field string
	}{
		{"empty phone", Credentials{Password: "Secret123!"}, "phone"},
		{"letters in phone", Credentials{Phone: "98000abc00", Password: "Secret123!"}, "phone"},
		{"short phone", Credentials{Phone: "12345", Password: "Secret123!"}, "phone"},
		{"empty password", Credentials{Phone: "9800000000"}, "password"},
		{"short password", Credentials{Phone: "9800000000", Password: "abc"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Login(tc.creds)
			if !autherr.Is(err, autherr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if fields := autherr.Fields(err); !slices.Contains(fields, tc.field) {
				t.Fatalf("expected field %s in %v", tc.field, fields)
			}
		})
	}
}

func TestSignupRequiresName(t *testing.T) {
	v := New()
	_, err := v.Signup(SignupRequest{
		Credentials: Credentials{Phone: "9800000000", Password: "Secret123!"},
		Profile:     map[string]any{"name": "  "},
	})
	if fields := autherr.Fields(err); !slices.Equal(fields, []string{"name"}) {
		t.Fatalf("expected name error only, got %v (%v)", fields, err)
	}

	_, err = v.Signup(SignupRequest{Profile: map[string]any{}})
	fields := autherr.Fields(err)
	for _, want := range []string{"phone", "password", "name"} {
		if !slices.Contains(fields, want) {
			t.Fatalf("expected %s in %v", want, fields)
		}
	}
}

func TestOTPShape(t *testing.T) {
	v := New()
	if code, err := v.OTP(" 123456 "); err != nil || code != "123456" {
		t.Fatalf("expected valid code, got %q %v", code, err)
	}
	for _, bad := range []string{"", "12345", "1234567", "12a456", "12 456"} {
		if _, err := v.OTP(bad); !autherr.Is(err, autherr.KindValidation) {
			t.Fatalf("expected %q to be rejected, got %v", bad, err)
		}
	}

	four := New(WithOTPLength(4))
	if _, err := four.OTP("1234"); err != nil {
		t.Fatalf("expected 4 digit code to pass: %v", err)
	}
}
