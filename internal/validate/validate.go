package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sangathan/sangathan/internal/autherr"
)

const (
	defaultMinPasswordLen = 8
	defaultOTPLength      = 6
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	digits       = regexp.MustCompile(`^[0-9]+$`)
	phoneNoise   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// Credentials is the phone/password pair submitted on login and signup.
type Credentials struct {
	Phone    string `json:"phone" validate:"required,phone"`
	Password string `json:"password" validate:"required,password"`
}

// SignupRequest carries credentials plus registrant profile fields. The core
// treats Profile as opaque apart from requiring a name.
type SignupRequest struct {
	Credentials
	Profile map[string]any `json:"-"`
}

// Validator checks input shapes before anything reaches the gateway.
type Validator struct {
	v              *validator.Validate
	minPasswordLen int
	otpLength      int
}

// Option tweaks validator policy.
type Option func(*Validator)

// WithMinPasswordLength overrides the minimum password length.
func WithMinPasswordLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.minPasswordLen = n
		}
	}
}

// WithOTPLength overrides the expected OTP code length.
func WithOTPLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.otpLength = n
		}
	}
}

// New builds a Validator with the registered phone, password and otp tags.
func New(opts ...Option) *Validator {
	out := &Validator{
		v:              validator.New(validator.WithRequiredStructEnabled()),
		minPasswordLen: defaultMinPasswordLen,
		otpLength:      defaultOTPLength,
	}
	for _, opt := range opts {
		opt(out)
	}
	_ = out.v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = out.v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) >= out.minPasswordLen
	})
	_ = out.v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		return len(code) == out.otpLength && digits.MatchString(code)
	})
	return out
}

// OTPLength reports the code length the validator enforces.
func (v *Validator) OTPLength() int { return v.otpLength }

// NormalizePhone strips formatting characters a user may type.
func NormalizePhone(phone string) string {
	return phoneNoise.Replace(strings.TrimSpace(phone))
}

// Login validates and normalizes login credentials.
func (v *Validator) Login(creds Credentials) (Credentials, error) {
	creds.Phone = NormalizePhone(creds.Phone)
	if err := v.v.Struct(creds); err != nil {
		return Credentials{}, v.translate(err)
	}
	return creds, nil
}

// Signup validates a registration request. A non-blank profile name is required.
func (v *Validator) Signup(req SignupRequest) (SignupRequest, error) {
	creds, credErr := v.Login(req.Credentials)
	var errs []error
	if credErr != nil {
		errs = append(errs, credErr)
	}
	name, _ := req.Profile["name"].(string)
	if strings.TrimSpace(name) == "" {
		errs = append(errs, autherr.Invalid("name", "name is required"))
	}
	if len(errs) > 0 {
		return SignupRequest{}, errors.Join(errs...)
	}
	req.Credentials = creds
	return req, nil
}

// Phone validates a single phone number, returning its normalized form.
func (v *Validator) Phone(phone string) (string, error) {
	phone = NormalizePhone(phone)
	if err := v.v.Var(phone, "required,phone"); err != nil {
		return "", v.translateVar("phone", err)
	}
	return phone, nil
}

// OTP validates a one-time code: digits only, exact length.
func (v *Validator) OTP(code string) (string, error) {
	code = strings.TrimSpace(code)
	if err := v.v.Var(code, "required,otp"); err != nil {
		return "", v.translateVar("code", err)
	}
	return code, nil
}

func (v *Validator) translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return autherr.Wrap(autherr.KindValidation, err, "invalid input")
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		errs = append(errs, autherr.Invalid(field, v.message(field, fe.Tag())))
	}
	return errors.Join(errs...)
}

func (v *Validator) translateVar(field string, err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return autherr.Invalid(field, v.message(field, fieldErrs[0].Tag()))
	}
	return autherr.Invalid(field, err.Error())
}

func (v *Validator) message(field, tag string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "phone":
		return "phone must be 7 to 15 digits"
	case "password":
		return fmt.Sprintf("password must be at least %d characters", v.minPasswordLen)
	case "otp":
		return fmt.Sprintf("code must be %d digits", v.otpLength)
	default:
		return field + " is invalid"
	}
}
