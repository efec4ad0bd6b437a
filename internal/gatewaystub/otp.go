package gatewaystub

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"
)

var (
	// ErrCodeExpired means the challenge is gone: never issued, past its TTL,
	// consumed, or locked after too many wrong attempts.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrCodeMismatch means the code was wrong but the challenge is still live.
	ErrCodeMismatch = errors.New("incorrect verification code")
)

type pendingCode struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// otpIssuer keeps one live code per phone. A new issue replaces the old code.
type otpIssuer struct {
	mu          sync.Mutex
	pending     map[string]pendingCode
	ttl         time.Duration
	maxAttempts int
	generate    func() (string, error)
	now         func() time.Time
}

func newOTPIssuer(ttl time.Duration, maxAttempts int, generate func() (string, error), now func() time.Time) *otpIssuer {
	return &otpIssuer{
		pending:     make(map[string]pendingCode),
		ttl:         ttl,
		maxAttempts: maxAttempts,
		generate:    generate,
		now:         now,
	}
}

func (o *otpIssuer) issue(phone string) (string, error) {
	code, err := o.generate()
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[phone] = pendingCode{code: code, expiresAt: o.now().Add(o.ttl)}
	return code, nil
}

func (o *otpIssuer) verify(phone, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.pending[phone]
	if !ok {
		return ErrCodeExpired
	}
	if o.now().After(p.expiresAt) {
		delete(o.pending, phone)
		return ErrCodeExpired
	}
	if strings.TrimSpace(code) != p.code {
		p.attempts++
		if p.attempts >= o.maxAttempts {
			delete(o.pending, phone)
			return ErrCodeExpired
		}
		o.pending[phone] = p
		return ErrCodeMismatch
	}
	delete(o.pending, phone)
	return nil
}

// RandomDigits returns a generator of n-digit codes read from crypto/rand.
func RandomDigits(n int) func() (string, error) {
	return func() (string, error) {
		var b strings.Builder
		b.Grow(n)
		for i := 0; i < n; i++ {
			d, err := rand.Int(rand.Reader, big.NewInt(10))
			if err != nil {
				return "", err
			}
			b.WriteByte(byte('0' + d.Int64()))
		}
		return b.String(), nil
	}
}
