package profile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewUser_Boundary(t *testing.T) {
	created := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		after time.Duration
		want  bool
	}{
		{"just created", 0, true},
		{"23h59m59s", 23*time.Hour + 59*time.Minute + 59*time.Second, true},
		{"exactly 24h", 24 * time.Hour, false},
		{"one nanosecond short of 24h", 24*time.Hour - time.Nanosecond, true},
		{"two days", 48 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNewUser(created, created.Add(tt.after)))
		})
	}
}

func TestRecord_IsNewUserRecomputed(t *testing.T) {
	created := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	r, err := NewRecord(uuid.New(), "a@b.co", created)
	require.NoError(t, err)

	assert.True(t, r.IsNewUser(created.Add(time.Hour)))
	assert.False(t, r.IsNewUser(created.Add(25*time.Hour)))
}

func TestDisplayUsername(t *testing.T) {
	assert.Equal(t, "jane", DisplayUsername("jane", "other@example.com"))
	assert.Equal(t, "john.smith", DisplayUsername("", "john.smith@example.com"))
	assert.Equal(t, "john.smith", DisplayUsername("   ", "john.smith@example.com"))
	assert.Equal(t, "", DisplayUsername("", ""))
	assert.Equal(t, "weird@local", EmailLocalPart("weird@local@example.com"))
}

func TestNewRecord_RejectsNilUser(t *testing.T) {
	_, err := NewRecord(uuid.Nil, "a@b.co", time.Now())
	assert.Error(t, err)
}

func TestCounter_Valid(t *testing.T) {
	assert.True(t, CounterOrders.Valid())
	assert.False(t, Counter("visits").Valid())
}
