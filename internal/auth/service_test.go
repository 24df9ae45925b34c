package auth

import (
	"testing"

	"mailrouter/backend/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(memory.NewStore())
}

func TestAuthService_Register(t *testing.T) {
	service := newTestService()

	user, err := service.Register(RegisterInput{
		Email:    "Test@Example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	// Email is stored lowercased
	assert.Equal(t, "test@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "Password123!", user.PasswordHash)
}

func TestAuthService_Register_InvalidEmail(t *testing.T) {
	service := newTestService()

	_, err := service.Register(RegisterInput{
		Email:    "not-an-email",
		Password: "Password123!",
	})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	service := newTestService()

	_, err := service.Register(RegisterInput{
		Email:    "test@example.com",
		Password: "short",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8 characters")
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	service := newTestService()

	_, err := service.Register(RegisterInput{
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	_, err = service.Register(RegisterInput{
		Email:    "test@example.com",
		Password: "OtherPassword123!",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthService_Login(t *testing.T) {
	service := newTestService()

	registered, err := service.Register(RegisterInput{
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	user, err := service.Login(LoginInput{
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	service := newTestService()

	_, err := service.Register(RegisterInput{
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	// Wrong password
	_, err = service.Login(LoginInput{
		Email:    "test@example.com",
		Password: "WrongPassword123!",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown user
	_, err = service.Login(LoginInput{
		Email:    "missing@example.com",
		Password: "Password123!",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_ChangePassword(t *testing.T) {
	service := newTestService()

	registered, err := service.Register(RegisterInput{
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	err = service.ChangePassword(registered.ID, "Password123!", "NewPassword123!")
	require.NoError(t, err)

	// New password works
	_, err = service.Login(LoginInput{Email: "test@example.com", Password: "NewPassword123!"})
	assert.NoError(t, err)

	// Old password no longer works
	_, err = service.Login(LoginInput{Email: "test@example.com", Password: "Password123!"})
	assert.Error(t, err)
}

func TestAuthService_ChangePassword_WrongOldPassword(t *testing.T) {
	service := newTestService()

	registered, err := service.Register(RegisterInput{
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	err = service.ChangePassword(registered.ID, "WrongPassword123!", "NewPassword123!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid old password")
}
