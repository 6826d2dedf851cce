package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitPlatformFee(t *testing.T) {
	cases := []struct {
		amount int64
		fee    int64
	}{
		{5000, 500},
		{1234, 123},
		{1235, 124},
		{5, 1},
		{4, 0},
		{0, 0},
	}

	for _, tc := range cases {
		fee, share := SplitPlatformFee(tc.amount)
		require.Equal(t, tc.fee, fee, "amount %d", tc.amount)
		require.Equal(t, tc.amount, fee+share, "amount %d", tc.amount)
	}
}

func TestTuitionLifecycleTransitions(t *testing.T) {
	open := Tuition{Status: TuitionStatusOpen}
	require.True(t, open.CanTransitionTo(TuitionStatusClosed))
	require.False(t, open.CanTransitionTo(TuitionStatusOngoing))
	require.False(t, open.CanTransitionTo(TuitionStatusCompleted))

	ongoing := Tuition{Status: TuitionStatusOngoing}
	require.True(t, ongoing.CanTransitionTo(TuitionStatusCompleted))
	require.True(t, ongoing.CanTransitionTo(TuitionStatusClosed))
	require.False(t, ongoing.Editable())
	require.False(t, ongoing.Deletable())

	closed := Tuition{Status: TuitionStatusClosed}
	require.False(t, closed.CanTransitionTo(TuitionStatusOpen))
	require.True(t, closed.Editable())
}

func TestTuitionVisibilityNeedsApprovalAndOpen(t *testing.T) {
	require.True(t, Tuition{ApprovalStatus: ApprovalStatusApproved, Status: TuitionStatusOpen}.IsPublic())
	require.False(t, Tuition{ApprovalStatus: ApprovalStatusPending, Status: TuitionStatusOpen}.IsPublic())
	require.False(t, Tuition{ApprovalStatus: ApprovalStatusApproved, Status: TuitionStatusOngoing}.IsPublic())
}

func TestNormalizeUserStatus(t *testing.T) {
	status, ok := NormalizeUserStatus("active")
	require.True(t, ok)
	require.Equal(t, UserStatusApproved, status)

	_, ok = NormalizeUserStatus("deleted")
	require.False(t, ok)
}
