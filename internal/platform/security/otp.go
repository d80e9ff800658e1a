package security

import (
	"crypto/subtle"
	"time"
)

const otpDigits = 6

// GenerateOTP returns a 6-digit numeric one-time code.
func (h *Helper) GenerateOTP() (string, error) {
	code := make([]byte, otpDigits)
	for i := range code {
		c, err := randomChar(digitChars)
		if err != nil {
			return "", err
		}
		code[i] = c
	}
	return string(code), nil
}

// VerifyOTP compares otp with expected. When issuedAt is non-zero the code
// is rejected once more than the OTP window has elapsed since issuedAt.
func (h *Helper) VerifyOTP(otp, expected string, issuedAt time.Time) bool {
	if !issuedAt.IsZero() && h.now().Sub(issuedAt) > h.otpWindow {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(otp), []byte(expected)) == 1
}
