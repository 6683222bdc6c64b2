package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/tarjetajoven/api/internal/domain"
	"github.com/tarjetajoven/api/internal/repo/postgres"
	"github.com/tarjetajoven/api/pkg/config"
	"github.com/tarjetajoven/api/pkg/events"
	"github.com/tarjetajoven/api/pkg/logger"
)

type CardholderService interface {
	// Lookup validates a CURP, applies the per-cardholder attempt limiter
	// and opens the provisioning window.
	Lookup(ctx context.Context, req *domain.LookupRequest, clientIP string) (*domain.LookupResult, error)

	// CreateAccount consumes an open provisioning window exactly once and
	// creates the login account bound to the cardholder.
	CreateAccount(ctx context.Context, curp string, req *domain.CreateAccountRequest, clientIP string) error
}

type cardholderService struct {
	cardholders postgres.CardholdersRepo
	audit       postgres.AuditRepo
	bus         events.Publisher
	limits      config.LookupConfig
	now         func() time.Time
}

func NewCardholderService(
	cardholders postgres.CardholdersRepo,
	audit postgres.AuditRepo,
	bus events.Publisher,
	limits config.LookupConfig,
) CardholderService {
	return &cardholderService{
		cardholders: cardholders,
		audit:       audit,
		bus:         bus,
		limits:      limits,
		now:         time.Now,
	}
}

func (s *cardholderService) Lookup(ctx context.Context, req *domain.LookupRequest, clientIP string) (*domain.LookupResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		result       *domain.LookupResult
		cardholderID int64
		rateLimited  bool
	)

	err := s.cardholders.WithLock(ctx, req.CURP, func(tx postgres.CardholderTx) error {
		ch := tx.Cardholder()
		// Absent and inactive are the same outcome on purpose: the
		// response must not reveal which one it was.
		if ch == nil || !ch.Active() {
			return domain.ErrCardNotAvailable
		}
		if ch.HasAccount() {
			return domain.ErrAccountExists
		}

		now := s.now()
		if ch.LockedOut(now) {
			return domain.ErrRateLimited
		}

		attempts := ch.AttemptsWithin(s.limits.RateWindow, now) + 1
		if attempts > s.limits.RateLimit {
			// The incremented counter and the lock must survive the
			// rejection, so this branch still commits.
			blockedUntil := now.Add(s.limits.BlockDuration)
			if err := tx.RecordAttempt(ctx, attempts, now, &blockedUntil); err != nil {
				return fmt.Errorf("failed to record lookup attempt: %w", err)
			}
			rateLimited = true
			return nil
		}

		if err := tx.OpenWindow(ctx, attempts, now, now.Add(s.limits.AccountWindow)); err != nil {
			return fmt.Errorf("failed to open provisioning window: %w", err)
		}

		cardholderID = ch.ID
		result = &domain.LookupResult{
			CURP:       ch.CURP,
			Nombres:    ch.Nombres,
			Apellidos:  ch.Apellidos,
			Municipio:  ch.Municipio,
			HasAccount: false,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rateLimited {
		return nil, domain.ErrRateLimited
	}

	// Audit is best-effort here: the window is already committed and the
	// caller's lookup must not fail because the audit write did.
	if err := s.audit.Append(ctx, cardholderID, domain.AuditActionLookup, clientIP); err != nil {
		logger.ErrorContext(ctx, "Failed to append lookup audit entry", "error", err, "cardholder_id", cardholderID)
	}
	s.publish(ctx, events.SubjectCardholderLookup, cardholderID, req.CURP, clientIP)

	return result, nil
}

func (s *cardholderService) CreateAccount(ctx context.Context, curp string, req *domain.CreateAccountRequest, clientIP string) error {
	curp = domain.NormalizeCURP(curp)
	if curp == "" || !domain.ValidCURP(curp) {
		return domain.Validation("CURP invalido.")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	var cardholderID int64

	err := s.cardholders.WithLock(ctx, curp, func(tx postgres.CardholderTx) error {
		ch := tx.Cardholder()
		if ch == nil || !ch.Active() {
			return domain.ErrCardNotAvailable
		}
		if ch.HasAccount() {
			return domain.ErrAccountExists
		}
		// A missing or elapsed window gets the same status as an
		// unavailable card, so "never looked up" stays indistinguishable
		// from "card inactive".
		if !ch.WindowOpen(s.now()) {
			return domain.ErrWindowExpired
		}

		taken, err := tx.LoginTaken(ctx, req.Username, curp)
		if err != nil {
			return fmt.Errorf("failed to check existing accounts: %w", err)
		}
		if taken {
			return domain.ErrAlreadyRegistered
		}

		hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		if _, err := tx.CreateAccount(ctx, &domain.NewAccount{
			Nombre:       ch.Nombres,
			Apellidos:    ch.Apellidos,
			CURP:         ch.CURP,
			Email:        req.Username,
			MunicipioID:  ch.MunicipioID,
			PasswordHash: hash,
		}); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		if err := tx.AppendAudit(ctx, domain.AuditActionAccountCreated, clientIP); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}

		cardholderID = ch.ID
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.SubjectAccountCreated, cardholderID, curp, clientIP)
	return nil
}

func (s *cardholderService) publish(ctx context.Context, subject string, cardholderID int64, curp, ip string) {
	event := map[string]any{
		"cardholder_id": cardholderID,
		"curp":          curp,
		"ip":            ip,
		"at":            s.now().UTC(),
	}
	if err := s.bus.Publish(ctx, subject, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
