package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/storage/memory"
)

func TestDashboardService_Stats(t *testing.T) {
	store := memory.NewStore()
	service := NewDashboardService(store, nil, zap.NewNop())

	require.NoError(t, store.SaveAddress(&domain.TempAddress{
		ID: "addr-1", UserID: "user-1", Address: "temp-1@router.example.com", IsActive: true,
	}))
	require.NoError(t, store.SaveAddress(&domain.TempAddress{
		ID: "addr-2", UserID: "user-1", Address: "temp-2@router.example.com", IsActive: false,
	}))

	logs := []*domain.EmailLog{
		{ID: "l-1", TempAddressID: "addr-1", ActionTaken: domain.LogActionForward},
		{ID: "l-2", TempAddressID: "addr-1", ActionTaken: domain.LogActionForward},
		{ID: "l-3", TempAddressID: "addr-2", ActionTaken: domain.LogActionDelete},
		{ID: "l-4", TempAddressID: "addr-1", ActionTaken: domain.LogActionFailed},
	}
	for _, l := range logs {
		require.NoError(t, store.AppendEmailLog(l))
	}

	stats, err := service.Stats(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalAddresses)
	assert.Equal(t, 1, stats.ActiveAddresses)
	assert.Equal(t, 2, stats.EmailsForwarded)
	assert.Equal(t, 1, stats.EmailsDeleted)
	// 最近活动包含所有动作（含 failed），按时间倒序
	assert.Len(t, stats.RecentActivity, 4)
	assert.Equal(t, "l-4", stats.RecentActivity[0].ID)
}

func TestDashboardService_Stats_EmptyUser(t *testing.T) {
	service := NewDashboardService(memory.NewStore(), nil, zap.NewNop())

	stats, err := service.Stats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalAddresses)
	assert.Empty(t, stats.RecentActivity)
}

func TestDashboardService_Logs(t *testing.T) {
	store := memory.NewStore()
	service := NewDashboardService(store, nil, zap.NewNop())

	require.NoError(t, store.SaveAddress(&domain.TempAddress{
		ID: "addr-1", UserID: "user-1", Address: "temp-1@router.example.com", IsActive: true,
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendEmailLog(&domain.EmailLog{
			ID: string(rune('a' + i)), TempAddressID: "addr-1", ActionTaken: domain.LogActionForward,
		}))
	}

	result, err := service.Logs("user-1", 3)
	require.NoError(t, err)
	assert.Len(t, result, 3)

	// limit 越界时回落到默认值
	result, err = service.Logs("user-1", 0)
	require.NoError(t, err)
	assert.Len(t, result, 5)
}
