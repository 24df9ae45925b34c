package memory

import (
	"testing"
	"time"

	"mailrouter/backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UserOperations(t *testing.T) {
	store := NewStore()

	user := &domain.User{
		ID:       "test-user-1",
		Email:    "owner@example.com",
		IsActive: true,
	}

	err := store.CreateUser(user)
	require.NoError(t, err)

	// Test GetUserByID
	retrieved, err := store.GetUserByID("test-user-1")
	require.NoError(t, err)
	assert.Equal(t, user.Email, retrieved.Email)
	assert.False(t, retrieved.CreatedAt.IsZero())

	// Test GetUserByEmail
	retrieved, err = store.GetUserByEmail("owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, retrieved.ID)

	// Duplicate email is rejected
	err = store.CreateUser(&domain.User{ID: "test-user-2", Email: "owner@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailExists)

	// Test UpdateLastLogin
	err = store.UpdateLastLogin("test-user-1")
	require.NoError(t, err)
	retrieved, err = store.GetUserByID("test-user-1")
	require.NoError(t, err)
	assert.NotNil(t, retrieved.LastLoginAt)

	// Unknown user
	_, err = store.GetUserByID("missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMemoryStore_AddressOperations(t *testing.T) {
	store := NewStore()

	address := &domain.TempAddress{
		ID:       "test-addr-1",
		UserID:   "test-user-1",
		Address:  "temp-a1b2c3d4@router.example.com",
		Purpose:  "newsletter signup",
		IsActive: true,
	}

	err := store.SaveAddress(address)
	require.NoError(t, err)

	// Test GetAddress
	retrieved, err := store.GetAddress("test-addr-1")
	require.NoError(t, err)
	assert.Equal(t, address.Address, retrieved.Address)

	// Test GetActiveAddress
	retrieved, err = store.GetActiveAddress("temp-a1b2c3d4@router.example.com")
	require.NoError(t, err)
	assert.Equal(t, address.ID, retrieved.ID)

	// Test CountActiveAddressesByUserID
	count, err := store.CountActiveAddressesByUserID("test-user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Test DeactivateAddress
	err = store.DeactivateAddress("test-addr-1")
	require.NoError(t, err)

	// Deactivated address no longer resolves as active
	_, err = store.GetActiveAddress("temp-a1b2c3d4@router.example.com")
	assert.ErrorIs(t, err, domain.ErrAddressNotFound)

	// But still exists by ID, for audit log references
	retrieved, err = store.GetAddress("test-addr-1")
	require.NoError(t, err)
	assert.False(t, retrieved.IsActive)

	// Deactivation is idempotent
	err = store.DeactivateAddress("test-addr-1")
	assert.NoError(t, err)

	count, err = store.CountActiveAddressesByUserID("test-user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = store.CountAddressesByUserID("test-user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStore_RuleOrdering(t *testing.T) {
	store := NewStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rules := []*domain.ForwardingRule{
		{ID: "r-3", UserID: "u1", Keywords: "invoice", Action: domain.ActionForward, Priority: 2, IsActive: true, CreatedAt: base},
		{ID: "r-1", UserID: "u1", Keywords: "spam", Action: domain.ActionDelete, Priority: 0, IsActive: true, CreatedAt: base.Add(time.Minute)},
		{ID: "r-2", UserID: "u1", Keywords: "promo", Action: domain.ActionDelete, Priority: 0, IsActive: true, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "r-4", UserID: "u1", Keywords: "old", Action: domain.ActionForward, Priority: 1, IsActive: false, CreatedAt: base},
		{ID: "r-other", UserID: "u2", Keywords: "x", Action: domain.ActionForward, Priority: 0, IsActive: true, CreatedAt: base},
	}
	for _, r := range rules {
		require.NoError(t, store.SaveRule(r))
	}

	// Active rules come back in evaluation order: priority asc, created_at asc
	active, err := store.ListActiveRulesByUserID("u1")
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "r-1", active[0].ID)
	assert.Equal(t, "r-2", active[1].ID)
	assert.Equal(t, "r-3", active[2].ID)

	// Full listing includes the inactive rule
	all, err := store.ListRulesByUserID("u1")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	count, err := store.CountRulesByUserID("u1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	// Test DeleteRule
	err = store.DeleteRule("r-2")
	require.NoError(t, err)
	_, err = store.GetRule("r-2")
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestMemoryStore_GetRuleReturnsCopy(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.SaveRule(&domain.ForwardingRule{
		ID: "r-1", UserID: "u1", Keywords: "newsletter", Action: domain.ActionDelete, IsActive: true,
	}))

	// 修改返回值不能影响已存规则，落库必须经过 SaveRule
	fetched, err := store.GetRule("r-1")
	require.NoError(t, err)
	fetched.Keywords = "scribbled"
	fetched.Action = domain.ActionForward

	stored, err := store.GetRule("r-1")
	require.NoError(t, err)
	assert.Equal(t, "newsletter", stored.Keywords)
	assert.Equal(t, domain.ActionDelete, stored.Action)
}

func TestMemoryStore_EmailLogOperations(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.SaveAddress(&domain.TempAddress{
		ID: "addr-1", UserID: "u1", Address: "temp-1@router.example.com", IsActive: true,
	}))
	require.NoError(t, store.SaveAddress(&domain.TempAddress{
		ID: "addr-2", UserID: "u2", Address: "temp-2@router.example.com", IsActive: true,
	}))

	logs := []*domain.EmailLog{
		{ID: "l-1", TempAddressID: "addr-1", SenderEmail: "a@example.com", ActionTaken: domain.LogActionForward, Confidence: 1.0},
		{ID: "l-2", TempAddressID: "addr-1", SenderEmail: "b@example.com", ActionTaken: domain.LogActionDelete, Confidence: 0.9},
		{ID: "l-3", TempAddressID: "addr-2", SenderEmail: "c@example.com", ActionTaken: domain.LogActionForward, Confidence: 0.8},
		{ID: "l-4", TempAddressID: "addr-1", SenderEmail: "d@example.com", ActionTaken: domain.LogActionForward, Confidence: 0.7},
	}
	for _, l := range logs {
		require.NoError(t, store.AppendEmailLog(l))
	}

	// Logs come back newest first, scoped to the owning user
	result, err := store.ListEmailLogsByUserID("u1", 10)
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "l-4", result[0].ID)
	assert.Equal(t, "l-2", result[1].ID)
	assert.Equal(t, "l-1", result[2].ID)

	// Limit is honored
	result, err = store.ListEmailLogsByUserID("u1", 2)
	require.NoError(t, err)
	assert.Len(t, result, 2)

	// Count by action
	count, err := store.CountEmailLogsByUserID("u1", domain.LogActionForward)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountEmailLogsByUserID("u1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
