package domain

import "time"

// OTP code bounds and validity window.
const (
	OTPCodeMin = 1000
	OTPCodeMax = 9999

	OTPValidity = 10 * time.Minute
)

// OTP purposes distinguish registration codes from password-reset codes.
const (
	OTPPurposeRegistration  = "registration"
	OTPPurposePasswordReset = "password_reset"
)

// OTP is a single-use numeric code bound to a user. Rows are never deleted;
// expiry is logical and consumption is recorded by the UserSeen flag.
type OTP struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Code      int       `json:"code"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
	UserSeen  bool      `json:"user_seen"`
	CreatedAt time.Time `json:"created_at"`
}

// Usable reports whether the code can still be consumed at the given instant:
// inside its validity window and not yet seen.
func (o *OTP) Usable(now time.Time) bool {
	return !o.UserSeen && now.Before(o.ExpiresAt)
}
