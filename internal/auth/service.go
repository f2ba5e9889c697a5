package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"optionsTracker/internal/domain"
	"optionsTracker/internal/ports"
)

// Service is the credential service: registration and login. It owns
// password hashing and token issuance; the orchestration layer never sees
// passwords.
type Service struct {
	logger     ports.Logger
	scope      ports.ConnScope
	users      ports.UserRepository
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
}

// Config holds configuration for the credential service.
type Config struct {
	Logger     ports.Logger
	Scope      ports.ConnScope
	Users      ports.UserRepository
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// NewService creates a new credential service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Logger == nil || cfg.Scope == nil || cfg.Users == nil {
		return nil, fmt.Errorf("missing required dependencies for auth service")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT secret must be set", ports.ErrConfiguration)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		logger:     cfg.Logger,
		scope:      cfg.Scope,
		users:      cfg.Users,
		secret:     []byte(cfg.JWTSecret),
		tokenTTL:   cfg.TokenTTL,
		bcryptCost: cfg.BcryptCost,
	}, nil
}

// Register creates a new user with a bcrypt-hashed password. A taken user
// ID surfaces as ErrUserExists.
func (s *Service) Register(ctx context.Context, userID int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.scope.WithConn(ctx, func(conn *sql.Conn) error {
		opCtx := context.WithoutCancel(ctx)

		existing, err := s.users.FindByID(opCtx, conn, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %d", ports.ErrUserExists, userID)
		}

		err = s.users.Create(opCtx, conn, &domain.User{
			ID:           userID,
			PasswordHash: string(hash),
			Role:         domain.RoleUser,
		})
		if err != nil {
			// Concurrent registration of the same ID loses the race here.
			if errors.Is(err, ports.ErrDuplicateEntry) {
				return fmt.Errorf("%w: %d", ports.ErrUserExists, userID)
			}
			return err
		}
		s.logger.Info(ctx, "User registered", map[string]interface{}{"userID": userID})
		return nil
	})
}

// Login verifies the password and issues a signed token carrying the user's
// ID and role. An unknown user surfaces as ErrNotFound, a wrong password as
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, userID int64, password string) (string, error) {
	var user *domain.User

	err := s.scope.WithConn(ctx, func(conn *sql.Conn) error {
		var err error
		user, err = s.users.FindByID(context.WithoutCancel(ctx), conn, userID)
		return err
	})
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("%w: user %d", ports.ErrNotFound, userID)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: user %d", ports.ErrInvalidCredentials, userID)
	}

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token for user %d: %w", user.ID, err)
	}

	s.logger.Info(ctx, "User logged in", map[string]interface{}{"userID": user.ID})
	return token, nil
}
