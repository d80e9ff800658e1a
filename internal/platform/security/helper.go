// Package security provides the credential, token, encryption and PII
// helpers used by test code. A Helper owns one symmetric key for its
// lifetime; every other operation is stateless.
package security

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTokenTTL  = time.Hour
	DefaultOTPWindow = 300 * time.Second
)

// Options configures a Helper.
type Options struct {
	// EncryptionKey is a 64-character hex string (32 bytes). A fresh key is
	// generated when empty.
	EncryptionKey string
	TokenTTL      time.Duration
	OTPWindow     time.Duration
	Now           func() time.Time
	Logger        zerolog.Logger
}

// Helper bundles the security operations.
type Helper struct {
	cipher    *FieldCipher
	key       string
	tokenTTL  time.Duration
	otpWindow time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates a Helper. The zero Options value is valid.
func New(opts Options) (*Helper, error) {
	key := opts.EncryptionKey
	if key == "" {
		generated, err := GenerateEncryptionKey()
		if err != nil {
			return nil, err
		}
		key = generated
		opts.Logger.Debug().Msg("generated session encryption key")
	}

	c, err := NewFieldCipherFromHex(key)
	if err != nil {
		return nil, fmt.Errorf("security helper: %w", err)
	}

	h := &Helper{
		cipher:    c,
		key:       key,
		tokenTTL:  opts.TokenTTL,
		otpWindow: opts.OTPWindow,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = DefaultTokenTTL
	}
	if h.otpWindow <= 0 {
		h.otpWindow = DefaultOTPWindow
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h, nil
}

// Key returns the hex-encoded instance key.
func (h *Helper) Key() string {
	return h.key
}
