package auth

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]{6}$`)
	for range 50 {
		code, err := GenerateOTP(6)
		require.NoError(t, err)
		assert.Regexp(t, digits, code)
	}

	_, err := GenerateOTP(0)
	assert.Error(t, err)
}

func TestOTPEntry_Matches(t *testing.T) {
	entry := OTPEntry{CodeHash: HashOTP("123456")}
	assert.True(t, entry.Matches("123456"))
	assert.False(t, entry.Matches("654321"))
	assert.False(t, entry.Matches(""))
}

func TestInMemoryOTPStore_Delete(t *testing.T) {
	store := NewInMemoryOTPStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "c1", OTPEntry{Phone: "+15550100", CodeHash: HashOTP("111111")}, time.Minute))
	require.NoError(t, store.Delete(ctx, "c1"))

	_, err := store.Consume(ctx, "c1", "111111", 3)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestInMemoryOTPStore_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewInMemoryOTPStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "c1", OTPEntry{Phone: "+15550100"}, 5*time.Minute))

	now = now.Add(5 * time.Minute)
	_, err := store.Consume(ctx, "c1", "", 3)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestInMemoryOTPStore_Consume(t *testing.T) {
	ctx := context.Background()

	t.Run("matching code consumes once", func(t *testing.T) {
		store := NewInMemoryOTPStore()
		require.NoError(t, store.Save(ctx, "c1", OTPEntry{Phone: "+15550100", CodeHash: HashOTP("111111")}, time.Minute))

		entry, err := store.Consume(ctx, "c1", "111111", 3)
		require.NoError(t, err)
		assert.Equal(t, "+15550100", entry.Phone)

		_, err = store.Consume(ctx, "c1", "111111", 3)
		assert.ErrorIs(t, err, ErrOTPNotFound)
	})

	t.Run("wrong codes exhaust the confirmation", func(t *testing.T) {
		store := NewInMemoryOTPStore()
		require.NoError(t, store.Save(ctx, "c1", OTPEntry{Phone: "+15550100", CodeHash: HashOTP("111111")}, time.Minute))

		_, err := store.Consume(ctx, "c1", "000000", 2)
		assert.ErrorIs(t, err, ErrOTPMismatch)
		_, err = store.Consume(ctx, "c1", "000000", 2)
		assert.ErrorIs(t, err, ErrOTPExhausted)

		_, err = store.Consume(ctx, "c1", "111111", 2)
		assert.ErrorIs(t, err, ErrOTPNotFound)
	})

	t.Run("concurrent confirms have one winner", func(t *testing.T) {
		store := NewInMemoryOTPStore()
		require.NoError(t, store.Save(ctx, "c1", OTPEntry{Phone: "+15550100", CodeHash: HashOTP("111111")}, time.Minute))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Consume(ctx, "c1", "111111", 5); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
