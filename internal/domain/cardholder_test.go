package domain

import (
	"testing"
	"time"
)

func TestNormalizeCURP(t *testing.T) {
	if got := NormalizeCURP("  abcd010101hdfrrn07 "); got != "ABCD010101HDFRRN07" {
		t.Errorf("NormalizeCURP = %q", got)
	}
}

func TestValidCURP(t *testing.T) {
	valid := []string{
		"ABCD010101HDFRRN07",
		"HERL020101MBCNRZ01",
		"LOMC990505HBCLPM02",
	}
	for _, c := range valid {
		if !ValidCURP(c) {
			t.Errorf("ValidCURP(%q) = false, want true", c)
		}
	}

	invalid := []string{
		"",
		"ABCD010101HDFRRN0",   // too short
		"ABCD010101HDFRRN073", // too long
		"ABC1010101HDFRRN07",  // digit in name block
		"ABCD010101XDFRRN07",  // bad sex marker
		"ABCD01010AHDFRRN07",  // letter in birth date
		"abcd010101hdfrrn07",  // not normalized
		"ABCD010101HDFRR N07", // space
	}
	for _, c := range invalid {
		if ValidCURP(c) {
			t.Errorf("ValidCURP(%q) = true, want false", c)
		}
	}
}

func TestCreateAccountRequestValidate(t *testing.T) {
	base := func() CreateAccountRequest {
		return CreateAccountRequest{
			Username:        "ana.hernandez",
			Password:        "Secreta123",
			ConfirmPassword: "Secreta123",
		}
	}

	if err := func() error { r := base(); return r.Validate() }(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CreateAccountRequest)
	}{
		{"empty username", func(r *CreateAccountRequest) { r.Username = "" }},
		{"short username", func(r *CreateAccountRequest) { r.Username = "abc" }},
		{"username bad chars", func(r *CreateAccountRequest) { r.Username = "ana hernandez" }},
		{"short password", func(r *CreateAccountRequest) { r.Password = "Ab1"; r.ConfirmPassword = "Ab1" }},
		{"password no digit", func(r *CreateAccountRequest) { r.Password = "Solamenteletras"; r.ConfirmPassword = "Solamenteletras" }},
		{"password no letter", func(r *CreateAccountRequest) { r.Password = "123456789"; r.ConfirmPassword = "123456789" }},
		{"confirmation mismatch", func(r *CreateAccountRequest) { r.ConfirmPassword = "Otra12345" }},
		{"empty confirmation", func(r *CreateAccountRequest) { r.ConfirmPassword = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := base()
			tc.mutate(&r)
			err := r.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsValidation(err) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestCardholderCounters(t *testing.T) {
	now := time.Now()

	ch := Cardholder{Status: StatusActive}
	if ch.LockedOut(now) {
		t.Error("fresh cardholder should not be locked out")
	}
	if got := ch.AttemptsWithin(15*time.Minute, now); got != 0 {
		t.Errorf("AttemptsWithin = %d, want 0", got)
	}
	if ch.WindowOpen(now) {
		t.Error("fresh cardholder should not have an open window")
	}

	recent := now.Add(-5 * time.Minute)
	ch.Attempts = 3
	ch.LastAttemptAt = &recent
	if got := ch.AttemptsWithin(15*time.Minute, now); got != 3 {
		t.Errorf("AttemptsWithin = %d, want 3", got)
	}

	stale := now.Add(-16 * time.Minute)
	ch.LastAttemptAt = &stale
	if got := ch.AttemptsWithin(15*time.Minute, now); got != 0 {
		t.Errorf("AttemptsWithin after window = %d, want 0", got)
	}

	future := now.Add(time.Minute)
	ch.BlockedUntil = &future
	if !ch.LockedOut(now) {
		t.Error("cardholder with future block should be locked out")
	}
	past := now.Add(-time.Minute)
	ch.BlockedUntil = &past
	if ch.LockedOut(now) {
		t.Error("expired block should not lock out")
	}

	ch.WindowUntil = &future
	if !ch.WindowOpen(now) {
		t.Error("future window should be open")
	}
	ch.WindowUntil = &past
	if ch.WindowOpen(now) {
		t.Error("past window should be closed")
	}
}
