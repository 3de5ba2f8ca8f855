package library

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempHistory(t *testing.T) (*History, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := NewHistory(path, WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h, path
}

func TestHistoryCheckoutReturnFlow(t *testing.T) {
	h, _ := tempHistory(t)
	out := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	due := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	back := time.Date(2026, time.March, 17, 9, 0, 0, 0, time.UTC)

	require.NoError(t, h.RecordCheckout(1001, 3, out, due))
	require.NoError(t, h.RecordReturn(1001, 3, back, 1.0))

	loans, err := h.ForAccount(3)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	l := loans[0]
	assert.Equal(t, 1001, l.Serial)
	assert.Equal(t, LoanReturned, l.Status)
	assert.True(t, l.CheckedOutAt.Equal(out))
	assert.True(t, l.Due.Equal(due))
	require.NotNil(t, l.ReturnedAt)
	assert.True(t, l.ReturnedAt.Equal(back))
	assert.InDelta(t, 1.0, l.Fine, 1e-9)
	assert.NotEqual(t, uuid.Nil, l.ID)
}

func TestHistoryReturnWithoutCheckout(t *testing.T) {
	h, _ := tempHistory(t)
	assert.Error(t, h.RecordReturn(1, 1, time.Now(), 0))
}

func TestHistoryTotalFines(t *testing.T) {
	h, _ := tempHistory(t)
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	for serial, fine := range map[int]float64{1: 0.5, 2: 2.0, 3: 0} {
		require.NoError(t, h.RecordCheckout(serial, 7, now, now))
		require.NoError(t, h.RecordReturn(serial, 7, now, fine))
	}
	require.NoError(t, h.RecordCheckout(4, 8, now, now))
	require.NoError(t, h.RecordReturn(4, 8, now, 9))

	total, err := h.TotalFines(7)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, total, 1e-9)

	total, err = h.TotalFines(99)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestHistoryAbandonsOpenLoansOnReopen(t *testing.T) {
	h, path := tempHistory(t)
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, h.RecordCheckout(5, 1, now, now.AddDate(0, 0, LoanPeriodDays)))
	require.NoError(t, h.Close())

	reopened, err := NewHistory(path, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer reopened.Close()

	loans, err := reopened.ForAccount(1)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, LoanAbandoned, loans[0].Status)
	assert.Nil(t, loans[0].ReturnedAt)

	// an abandoned loan cannot be closed, and the serial can be lent again
	assert.Error(t, reopened.RecordReturn(5, 1, now, 0))
	require.NoError(t, reopened.RecordCheckout(5, 1, now, now))
}

func TestHistoryAsLibrarianRecorder(t *testing.T) {
	h, _ := tempHistory(t)
	f := newFixture(t, threeBooks, WithRecorder(h))

	_, err := f.lib.CheckoutBook(1002, 1)
	require.NoError(t, err)
	f.clock.Set(time.Date(2026, time.March, 20, 8, 0, 0, 0, time.UTC))
	fine, err := f.lib.ReturnBook(1002, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, fine, 1e-9)

	loans, err := h.ForAccount(1)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, LoanReturned, loans[0].Status)
	assert.InDelta(t, 2.5, loans[0].Fine, 1e-9)
}
