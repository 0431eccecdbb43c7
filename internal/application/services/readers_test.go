package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

func TestABTestService_Get_IncludesArmStats(t *testing.T) {
	repo := new(MockABTestRepository)
	service := NewABTestService(repo)
	test := models.NewABTest("abt_1", "agt_1", "opt_1", "pv_1", "pv_2", 75, 25, models.DefaultABTestDuration)
	quality := 7.2
	stats := []*models.ABArmStats{
		{PlannedArm: models.ABArmControl, ServedVersionID: "pv_1", CallCount: 12, EvaluatedCalls: 4, AverageQuality: &quality},
		{PlannedArm: models.ABArmTest, ServedVersionID: "pv_1", CallCount: 3},
	}

	repo.On("GetByID", mock.Anything, "abt_1").Return(test, nil)
	repo.On("ArmStats", mock.Anything, "abt_1").Return(stats, nil)

	got, gotStats, err := service.Get(context.Background(), "abt_1")

	require.NoError(t, err)
	assert.Equal(t, test, got)
	assert.Len(t, gotStats, 2)
}

func TestABTestService_SweepExpired(t *testing.T) {
	repo := new(MockABTestRepository)
	service := NewABTestService(repo)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	expired := models.NewABTest("abt_1", "agt_1", "opt_1", "pv_1", "pv_2", 75, 25, time.Hour)
	expired.ScheduledEndAt = now.Add(-time.Minute)
	repo.On("ListExpired", mock.Anything, now).Return([]*models.ABTest{expired}, nil)

	n, err := service.SweepExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, expired.IsRunning(), "sweeping never closes a test")
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}
