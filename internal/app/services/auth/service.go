// Package auth implements registration, login and JWT issuance.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/brickvault/platform/internal/app/domain/user"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// ErrInvalidCredentials is returned for unknown emails, wrong passwords and
// deactivated accounts so callers cannot distinguish the three.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned for expired, malformed or mistyped tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload issued for platform sessions.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// Token types carried in the Claims Type field.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenPair is an issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Service handles authentication.
type Service struct {
	users      storage.UserStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *logger.Logger
}

// Config holds auth settings.
type Config struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// New constructs an auth service.
func New(users storage.UserStore, cfg Config, log *logger.Logger) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret required")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{
		users:      users,
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		log:        log,
	}, nil
}

// Register creates a local-password user.
func (s *Service) Register(ctx context.Context, email, name, password string, role user.Role) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, fmt.Errorf("valid email is required")
	}
	if name == "" {
		return user.User{}, fmt.Errorf("name is required")
	}
	if len(password) < 8 {
		return user.User{}, fmt.Errorf("password must be at least 8 characters")
	}
	if role == "" {
		role = user.RoleInvestor
	}
	if !user.ValidRole(role) {
		return user.User{}, fmt.Errorf("unknown role %q", role)
	}
	// Admins are provisioned out of band, never self-registered.
	if role == user.RoleAdmin {
		return user.User{}, fmt.Errorf("cannot register role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Provider:     user.ProviderLocal,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.WithField("user_id", created.ID).
		WithField("role", string(created.Role)).
		Info("user registered")
	return created, nil
}

// Login verifies a local password and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, TokenPair, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return user.User{}, TokenPair{}, err
	}
	if !u.Active || u.Provider != user.ProviderLocal {
		return user.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return user.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, pair, nil
}

// OAuthLogin finds or creates a user for a verified identity asserted by an
// external provider, then issues a token pair. The identity must already be
// validated against the provider by the caller.
func (s *Service) OAuthLogin(ctx context.Context, provider user.Provider, email, name string) (user.User, TokenPair, error) {
	if provider != user.ProviderGoogle && provider != user.ProviderAzure {
		return user.User{}, TokenPair{}, fmt.Errorf("unsupported provider %q", provider)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return user.User{}, TokenPair{}, fmt.Errorf("provider identity missing email")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !u.Active {
			return user.User{}, TokenPair{}, ErrInvalidCredentials
		}
		if u.Provider != provider {
			return user.User{}, TokenPair{}, fmt.Errorf("email registered with provider %q", u.Provider)
		}
	case errors.Is(err, storage.ErrNotFound):
		u, err = s.users.CreateUser(ctx, user.User{
			Email:    email,
			Name:     strings.TrimSpace(name),
			Provider: provider,
			Role:     user.RoleInvestor,
			Active:   true,
		})
		if err != nil {
			return user.User{}, TokenPair{}, err
		}
		s.log.WithField("user_id", u.ID).
			WithField("provider", string(provider)).
			Info("user provisioned from oauth identity")
	default:
		return user.User{}, TokenPair{}, err
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The user is re-read so a
// deactivation or role change since issuance takes effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (user.User, TokenPair, error) {
	claims, err := s.Parse(refreshToken)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}
	if claims.Type != TokenTypeRefresh {
		return user.User{}, TokenPair{}, ErrInvalidToken
	}

	u, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, TokenPair{}, ErrInvalidToken
		}
		return user.User{}, TokenPair{}, err
	}
	if !u.Active {
		return user.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}
	return u, pair, nil
}

// Parse validates a token signature and expiry and returns its claims.
func (s *Service) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) issuePair(u user.User) (TokenPair, error) {
	now := time.Now().UTC()
	accessExpiry := now.Add(s.accessTTL)

	access, err := s.sign(u, TokenTypeAccess, now, accessExpiry)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(u, TokenTypeRefresh, now, now.Add(s.refreshTTL))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiry,
	}, nil
}

func (s *Service) sign(u user.User, typ string, now, expiry time.Time) (string, error) {
	claims := Claims{
		Role:  string(u.Role),
		Email: u.Email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
