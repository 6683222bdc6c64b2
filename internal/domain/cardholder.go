package domain

import (
	"regexp"
	"strings"
	"time"
)

// Cardholder lifecycle statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBlocked  = "blocked"
)

var (
	curpRegex     = regexp.MustCompile(`^[A-Z]{4}\d{6}[HM][A-Z]{5}[0-9A-Z]{2}$`)
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{4,50}$`)
	letterRegex   = regexp.MustCompile(`[A-Za-z]`)
	digitRegex    = regexp.MustCompile(`\d`)
)

// Cardholder is a physical benefit-card holder. The lookup counters and
// window fields live on the row itself so they survive multiple API
// instances; they are only mutated under a row lock.
type Cardholder struct {
	ID            int64
	CURP          string
	Nombres       string
	Apellidos     string
	MunicipioID   *int64
	Municipio     string
	CardNumber    string
	Status        string
	Attempts      int
	LastAttemptAt *time.Time
	BlockedUntil  *time.Time
	WindowUntil   *time.Time
	AccountUserID *int64
}

func (c *Cardholder) Active() bool {
	return c.Status == StatusActive
}

func (c *Cardholder) HasAccount() bool {
	return c.AccountUserID != nil
}

// LockedOut reports whether a previous burst of lookups put the
// cardholder in a cool-down that has not elapsed yet.
func (c *Cardholder) LockedOut(now time.Time) bool {
	return c.BlockedUntil != nil && c.BlockedUntil.After(now)
}

// AttemptsWithin returns the counter value the next attempt builds on:
// the stored counter while the last attempt is inside the window, zero
// once the window has elapsed.
func (c *Cardholder) AttemptsWithin(window time.Duration, now time.Time) int {
	if c.LastAttemptAt == nil || now.Sub(*c.LastAttemptAt) > window {
		return 0
	}
	return c.Attempts
}

// WindowOpen reports whether a successful lookup left a live
// provisioning window.
func (c *Cardholder) WindowOpen(now time.Time) bool {
	return c.WindowUntil != nil && c.WindowUntil.After(now)
}

// NormalizeCURP trims and upper-cases a raw identity code.
func NormalizeCURP(curp string) string {
	return strings.ToUpper(strings.TrimSpace(curp))
}

// ValidCURP checks the fixed CURP shape: 4 letters, birth date, sex
// marker, 5 letters, 2 alphanumerics. Input must already be normalized.
func ValidCURP(curp string) bool {
	return curpRegex.MatchString(curp)
}

// LookupRequest is the body of POST /cardholders/lookup.
type LookupRequest struct {
	CURP string `json:"curp"`
}

func (r *LookupRequest) Normalize() {
	r.CURP = NormalizeCURP(r.CURP)
}

func (r *LookupRequest) Validate() error {
	if r.CURP == "" {
		return Validation("El CURP es obligatorio.")
	}
	if !ValidCURP(r.CURP) {
		return Validation("Formato de CURP invalido.")
	}
	return nil
}

// LookupResult is the public slice of a cardholder returned by a
// successful lookup.
type LookupResult struct {
	CURP       string `json:"curp"`
	Nombres    string `json:"nombres"`
	Apellidos  string `json:"apellidos"`
	Municipio  string `json:"municipio"`
	HasAccount bool   `json:"hasAccount"`
}

// CreateAccountRequest is the body of POST /cardholders/{curp}/account.
type CreateAccountRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r *CreateAccountRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

func (r *CreateAccountRequest) Validate() error {
	if r.Username == "" {
		return Validation("El nombre de usuario es obligatorio.")
	}
	if !usernameRegex.MatchString(r.Username) {
		return Validation("El nombre de usuario debe tener entre 4 y 50 caracteres alfanumericos.")
	}
	if r.Password == "" {
		return Validation("La contraseña es obligatoria.")
	}
	if len(r.Password) < 8 || !letterRegex.MatchString(r.Password) || !digitRegex.MatchString(r.Password) {
		return Validation("La contraseña debe tener al menos 8 caracteres, incluyendo letras y numeros.")
	}
	if r.ConfirmPassword == "" || r.ConfirmPassword != r.Password {
		return Validation("La confirmacion de contraseña no coincide.")
	}
	return nil
}
