package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockbrief/internal/billing"
	"stockbrief/internal/types"
)

type mockProfiles struct{ mock.Mock }

func (m *mockProfiles) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*types.Profile)
	return p, args.Error(1)
}

type mockUsage struct{ mock.Mock }

func (m *mockUsage) CountSince(ctx context.Context, userID string, action types.UsageAction, since time.Time) (int, error) {
	args := m.Called(ctx, userID, action, since)
	return args.Int(0), args.Error(1)
}

// Wednesday 2025-03-12 15:04 UTC; the window opens Sunday 2025-03-09.
var (
	testNow        = time.Date(2025, 3, 12, 15, 4, 0, 0, time.UTC)
	testWindowOpen = time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	testUser       = types.UserIdentity{ID: "user-1", Email: "u@example.com"}
)

func newTestGate(p *mockProfiles, u *mockUsage) *Gate {
	return NewGate(p, u, billing.NewStaticPlanRegistry(), types.FixedClock{T: testNow}, time.UTC, nil)
}

func TestAdmit_FreeUnderLimit(t *testing.T) {
	p, u := &mockProfiles{}, &mockUsage{}
	p.On("GetProfile", mock.Anything, "user-1").Return(&types.Profile{ID: "user-1", Plan: "free"}, nil)
	u.On("CountSince", mock.Anything, "user-1", types.ActionCompanyIntro, testWindowOpen).Return(1, nil)

	d, err := newTestGate(p, u).Admit(context.Background(), testUser, types.ActionCompanyIntro)

	require.NoError(t, err)
	assert.True(t, d.Admitted)
	assert.Equal(t, types.PlanFree, d.Plan)
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, 2, d.Limit)
	assert.Nil(t, d.Err())
	u.AssertExpectations(t)
}

func TestAdmit_RejectsAtLimit(t *testing.T) {
	tests := []struct {
		plan  string
		count int
		limit int
	}{
		{"free", 2, 2},
		{"free", 5, 2},
		{"plus", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.plan, func(t *testing.T) {
			p, u := &mockProfiles{}, &mockUsage{}
			p.On("GetProfile", mock.Anything, "user-1").Return(&types.Profile{Plan: tt.plan}, nil)
			u.On("CountSince", mock.Anything, "user-1", types.ActionCompanyIntro, testWindowOpen).Return(tt.count, nil)

			d, err := newTestGate(p, u).Admit(context.Background(), testUser, types.ActionCompanyIntro)

			require.NoError(t, err)
			assert.False(t, d.Admitted)
			assert.Equal(t, tt.limit, d.Limit)

			appErr := d.Err()
			require.NotNil(t, appErr)
			assert.Equal(t, types.ErrCodeLimitWeeklyQuota, appErr.Code)
			assert.Equal(t, tt.plan, appErr.Details["plan"])
			assert.Contains(t, appErr.Message, tt.plan)
		})
	}
}

func TestAdmit_PlusJustUnderLimit(t *testing.T) {
	p, u := &mockProfiles{}, &mockUsage{}
	p.On("GetProfile", mock.Anything, "user-1").Return(&types.Profile{Plan: "Plus"}, nil)
	u.On("CountSince", mock.Anything, "user-1", types.ActionCompanyIntro, testWindowOpen).Return(9, nil)

	d, err := newTestGate(p, u).Admit(context.Background(), testUser, types.ActionCompanyIntro)

	require.NoError(t, err)
	assert.True(t, d.Admitted)
	assert.Equal(t, types.PlanPlus, d.Plan)
}

func TestAdmit_ProSkipsLedger(t *testing.T) {
	for _, raw := range []string{"pro", "PRO", " Pro"} {
		p, u := &mockProfiles{}, &mockUsage{}
		p.On("GetProfile", mock.Anything, "user-1").Return(&types.Profile{Plan: raw}, nil)

		d, err := newTestGate(p, u).Admit(context.Background(), testUser, types.ActionCompanyIntro)

		require.NoError(t, err)
		assert.True(t, d.Admitted)
		assert.True(t, d.Unlimited())
		assert.Equal(t, types.PlanPro, d.Plan)
		u.AssertNotCalled(t, "CountSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestAdmit_MissingOrUnknownPlanIsFree(t *testing.T) {
	profiles := []*types.Profile{nil, {Plan: ""}, {Plan: "platinum"}}
	for _, prof := range profiles {
		p, u := &mockProfiles{}, &mockUsage{}
		p.On("GetProfile", mock.Anything, "user-1").Return(prof, nil)
		u.On("CountSince", mock.Anything, "user-1", types.ActionCompanyIntro, testWindowOpen).Return(2, nil)

		d, err := newTestGate(p, u).Admit(context.Background(), testUser, types.ActionCompanyIntro)

		require.NoError(t, err)
		assert.Equal(t, types.PlanFree, d.Plan)
		assert.False(t, d.Admitted)
	}
}

func TestAdmit_FailsClosed(t *testing.T) {
	t.Run("profile read error", func(t *testing.T) {
		p, u := &mockProfiles{}, &mockUsage{}
		p.On("GetProfile", mock.Anything, "user-1").Return(nil, errors.New("connection reset"))

		d, err := newTestGate(p, u).Admit(context.Background(), testUser, types.ActionCompanyIntro)

		require.Error(t, err)
		assert.False(t, d.Admitted)
		assert.Equal(t, types.ErrCodeInternalQuotaCheck, types.CodeOf(err))
	})

	t.Run("count error", func(t *testing.T) {
		p, u := &mockProfiles{}, &mockUsage{}
		p.On("GetProfile", mock.Anything, "user-1").Return(&types.Profile{Plan: "plus"}, nil)
		u.On("CountSince", mock.Anything, "user-1", types.ActionCompanyIntro, testWindowOpen).Return(0, errors.New("timeout"))

		d, err := newTestGate(p, u).Admit(context.Background(), testUser, types.ActionCompanyIntro)

		require.Error(t, err)
		assert.False(t, d.Admitted)
		assert.Equal(t, types.ErrCodeInternalQuotaCheck, types.CodeOf(err))
	})
}

func TestUsage_ReadsLedgerForPro(t *testing.T) {
	p, u := &mockProfiles{}, &mockUsage{}
	p.On("GetProfile", mock.Anything, "user-1").Return(&types.Profile{Plan: "pro"}, nil)
	u.On("CountSince", mock.Anything, "user-1", types.ActionCompanyIntro, testWindowOpen).Return(42, nil)

	d, err := newTestGate(p, u).Usage(context.Background(), "user-1", types.ActionCompanyIntro)

	require.NoError(t, err)
	assert.Equal(t, 42, d.Count)
	assert.Zero(t, d.Limit)
	assert.True(t, d.Admitted)
	assert.Equal(t, testWindowOpen, d.WindowStart)
}

func TestWeekStart(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want time.Time
	}{
		{
			name: "midweek",
			now:  testNow,
			loc:  time.UTC,
			want: testWindowOpen,
		},
		{
			name: "sunday midnight is its own window start",
			now:  time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday last second belongs to previous week",
			now:  time.Date(2025, 3, 8, 23, 59, 59, 0, time.UTC),
			loc:  time.UTC,
			want: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "window computed in configured zone",
			// Saturday 17:00 UTC is already Sunday 01:00 in Taipei.
			now:  time.Date(2025, 3, 8, 17, 0, 0, 0, time.UTC),
			loc:  taipei,
			want: time.Date(2025, 3, 9, 0, 0, 0, 0, taipei),
		},
		{
			name: "crosses month boundary",
			now:  time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStart(tt.now, tt.loc)
			assert.True(t, got.Equal(tt.want), "WeekStart() = %v, want %v", got, tt.want)
			assert.Equal(t, time.Sunday, got.In(tt.loc).Weekday())
		})
	}
}

func TestAdmit_EntryAtWindowStartCounts(t *testing.T) {
	// The ledger query is inclusive at the window start; the gate must pass
	// the exact boundary instant.
	p, u := &mockProfiles{}, &mockUsage{}
	p.On("GetProfile", mock.Anything, "user-1").Return(&types.Profile{Plan: "free"}, nil)
	u.On("CountSince", mock.Anything, "user-1", types.ActionCompanyIntro, mock.MatchedBy(func(since time.Time) bool {
		return since.Equal(testWindowOpen)
	})).Return(0, nil)

	_, err := newTestGate(p, u).Admit(context.Background(), testUser, types.ActionCompanyIntro)
	require.NoError(t, err)
	u.AssertExpectations(t)
}
