package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"optionsTracker/internal/domain"
	"optionsTracker/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockScope struct{}

func (m *mockScope) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	return fn(nil)
}

// mockUserRepo keeps users in a map so register-then-login round-trips work.
type mockUserRepo struct {
	users     map[int64]*domain.User
	findErr   error
	createErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[int64]*domain.User{}}
}

func (m *mockUserRepo) Create(ctx context.Context, conn *sql.Conn, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[user.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, conn *sql.Conn, userID int64) (*domain.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.users[userID], nil
}

func newTestService(t *testing.T, users ports.UserRepository) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Logger:     &mockLogger{},
		Scope:      &mockScope{},
		Users:      users,
		JWTSecret:  "test-secret",
		TokenTTL:   time.Minute,
		BcryptCost: bcrypt.MinCost, // keep hashing fast in tests
	})
	require.NoError(t, err)
	return svc
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{Scope: &mockScope{}, Users: newMockUserRepo(), JWTSecret: "s"})
	assert.Error(t, err, "nil logger")

	_, err = NewService(Config{Logger: &mockLogger{}, Scope: &mockScope{}, Users: newMockUserRepo()})
	assert.ErrorIs(t, err, ports.ErrConfiguration, "empty secret")
}

func TestRegisterAndLogin(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestService(t, users)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, "hunter2"))

	// The stored password is hashed, never plaintext.
	stored := users.users[1]
	require.NotNil(t, stored)
	assert.NotEqual(t, "hunter2", stored.PasswordHash)
	assert.Equal(t, domain.RoleUser, stored.Role)

	token, err := svc.Login(ctx, 1, "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// The token parses under the signing secret and carries identity claims.
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(1), claims["user_id"])
	assert.Equal(t, string(domain.RoleUser), claims["role"])
	assert.NotNil(t, claims["exp"])
}

func TestRegister_DuplicateUserID(t *testing.T) {
	svc := newTestService(t, newMockUserRepo())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, "first"))

	err := svc.Register(ctx, 1, "second")
	assert.ErrorIs(t, err, ports.ErrUserExists)
}

func TestRegister_CreateRaceMapsToUserExists(t *testing.T) {
	// The existence check passed but the insert lost a concurrent race.
	users := newMockUserRepo()
	users.createErr = ports.ErrDuplicateEntry
	svc := newTestService(t, users)

	err := svc.Register(context.Background(), 1, "pw")
	assert.ErrorIs(t, err, ports.ErrUserExists)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := newTestService(t, newMockUserRepo())

	token, err := svc.Login(context.Background(), 404, "pw")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.Empty(t, token)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := newTestService(t, newMockUserRepo())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, "correct"))

	token, err := svc.Login(ctx, 1, "wrong")
	assert.ErrorIs(t, err, ports.ErrInvalidCredentials)
	assert.Empty(t, token)
}

func TestLogin_StoreFaultPropagates(t *testing.T) {
	users := newMockUserRepo()
	users.findErr = errors.New("query failed")
	svc := newTestService(t, users)

	_, err := svc.Login(context.Background(), 1, "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrInvalidCredentials)
}
