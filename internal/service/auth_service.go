package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"

	"github.com/tarjetajoven/api/internal/domain"
	"github.com/tarjetajoven/api/internal/repo/postgres"
	"github.com/tarjetajoven/api/internal/sender"
	"github.com/tarjetajoven/api/pkg/auth"
	"github.com/tarjetajoven/api/pkg/config"
	"github.com/tarjetajoven/api/pkg/logger"
)

type AuthService interface {
	// Login matches the identifier against username or CURP and issues a
	// token pair.
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, userID int64) error

	// SendOTP stores a hashed one-time code for the CURP and hands it to
	// the delivery channel. The plaintext code is returned so dev mode
	// can expose it.
	SendOTP(ctx context.Context, curp string) (string, error)
	VerifyOTP(ctx context.Context, curp, otp string) (*domain.TokenPair, error)

	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
}

type authService struct {
	accounts postgres.AccountsRepo
	tokens   postgres.RefreshTokensRepo
	otps     postgres.OTPRepo
	sender   sender.CodeSender
	cfg      config.AuthConfig
}

func NewAuthService(
	accounts postgres.AccountsRepo,
	tokens postgres.RefreshTokensRepo,
	otps postgres.OTPRepo,
	codeSender sender.CodeSender,
	cfg config.AuthConfig,
) AuthService {
	return &authService{
		accounts: accounts,
		tokens:   tokens,
		otps:     otps,
		sender:   codeSender,
		cfg:      cfg,
	}
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.TokenPair, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByLogin(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, domain.ErrInvalidCredentials
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issueTokens(ctx, account)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, domain.Validation("refreshToken es obligatorio.")
	}

	userID, ok, err := s.tokens.Find(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, domain.ErrInvalidCredentials
	}

	accessToken, err := auth.NewAccessToken(account.ID, account.CURP, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *authService) Logout(ctx context.Context, userID int64) error {
	if err := s.tokens.DeleteForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete refresh tokens: %w", err)
	}
	return nil
}

func (s *authService) SendOTP(ctx context.Context, curp string) (string, error) {
	curp = domain.NormalizeCURP(curp)
	if curp == "" || !domain.ValidCURP(curp) {
		return "", domain.Validation("Formato de CURP invalido.")
	}

	code, err := generateOTPCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}

	if err := s.otps.Create(ctx, curp, string(hash), time.Now().Add(s.cfg.OTPCodeTTL)); err != nil {
		return "", fmt.Errorf("failed to store code: %w", err)
	}

	if err := s.sender.SendOTP(curp, code); err != nil {
		logger.ErrorContext(ctx, "Failed to deliver one-time code", "error", err, "curp", curp)
	}

	return code, nil
}

func (s *authService) VerifyOTP(ctx context.Context, curp, otp string) (*domain.TokenPair, error) {
	curp = domain.NormalizeCURP(curp)
	if curp == "" || otp == "" {
		return nil, domain.Validation("curp y otp son obligatorios.")
	}

	ok, err := s.otps.Consume(ctx, curp, otp)
	if err != nil {
		return nil, fmt.Errorf("failed to check code: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidOTP
	}

	account, err := s.accounts.FindByCURP(ctx, curp)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}

	return s.issueTokens(ctx, account)
}

func (s *authService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func (s *authService) issueTokens(ctx context.Context, account *domain.Account) (*domain.TokenPair, error) {
	accessToken, err := auth.NewAccessToken(account.ID, account.CURP, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if err := s.tokens.Create(ctx, account.ID, refreshToken, time.Now().Add(s.cfg.RefreshTokenTTL)); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 40)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
