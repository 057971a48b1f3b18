package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrOTPNotFound is returned when a confirmation is unknown or expired
	ErrOTPNotFound = errors.New("confirmation not found or expired")
	// ErrOTPMismatch is returned by Consume for a wrong code
	ErrOTPMismatch = errors.New("confirmation code mismatch")
	// ErrOTPExhausted is returned by Consume when the wrong code used up
	// the last attempt and the confirmation was discarded
	ErrOTPExhausted = errors.New("confirmation attempts exhausted")
)

// OTPEntry is a pending phone confirmation
type OTPEntry struct {
	Phone    string
	CodeHash string
	Attempts int
}

// Matches compares code against the stored hash in constant time
func (e *OTPEntry) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(HashOTP(code)), []byte(e.CodeHash)) == 1
}

// OTPStore keeps pending phone confirmations until they expire
type OTPStore interface {
	Save(ctx context.Context, id string, entry OTPEntry, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	// Consume checks code against the confirmation in one step. A match
	// deletes the confirmation and returns it, so only one caller can win.
	// A wrong code counts as an attempt; reaching maxAttempts deletes it.
	Consume(ctx context.Context, id, code string, maxAttempts int) (*OTPEntry, error)
}

// GenerateOTP returns a random numeric code of the given length
func GenerateOTP(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("invalid otp length %d", length)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// HashOTP returns the hex SHA-256 of a code
func HashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// RedisOTPStore stores confirmations as Redis hashes with TTL
type RedisOTPStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisOTPStore creates a Redis-backed OTP store
func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client, keyPrefix: "auth:otp:"}
}

func (s *RedisOTPStore) key(id string) string { return s.keyPrefix + id }

// Save stores entry under id for ttl
func (s *RedisOTPStore) Save(ctx context.Context, id string, entry OTPEntry, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(id), map[string]any{
		"phone":    entry.Phone,
		"code":     entry.CodeHash,
		"attempts": entry.Attempts,
	})
	pipe.Expire(ctx, s.key(id), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save otp: %w", err)
	}
	return nil
}

// Delete removes a confirmation
func (s *RedisOTPStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}

const (
	otpConsumed int64 = iota
	otpMissing
	otpMismatch
	otpExhausted
)

// KEYS[1] confirmation hash; ARGV[1] code hash; ARGV[2] max attempts.
// Returns {status, phone}.
var consumeOTPScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'phone', 'code', 'attempts')
if not v[2] then
  return {1, ''}
end
local max = tonumber(ARGV[2])
local attempts = tonumber(v[3]) or 0
if attempts < max and v[2] == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return {0, v[1]}
end
attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if attempts >= max then
  redis.call('DEL', KEYS[1])
  return {3, ''}
end
return {2, ''}
`)

// Consume runs the check, the attempt count and the delete as one script
func (s *RedisOTPStore) Consume(ctx context.Context, id, code string, maxAttempts int) (*OTPEntry, error) {
	res, err := consumeOTPScript.Run(ctx, s.client, []string{s.key(id)}, HashOTP(code), maxAttempts).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to consume otp: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("failed to consume otp: unexpected reply %v", res)
	}
	status, _ := res[0].(int64)
	switch status {
	case otpConsumed:
		phone, _ := res[1].(string)
		return &OTPEntry{Phone: phone, CodeHash: HashOTP(code)}, nil
	case otpMissing:
		return nil, ErrOTPNotFound
	case otpExhausted:
		return nil, ErrOTPExhausted
	default:
		return nil, ErrOTPMismatch
	}
}

var _ OTPStore = (*RedisOTPStore)(nil)

type otpRecord struct {
	entry     OTPEntry
	expiresAt time.Time
}

// InMemoryOTPStore is a single-instance OTPStore
type InMemoryOTPStore struct {
	mu      sync.Mutex
	entries map[string]*otpRecord
	now     func() time.Time
}

// NewInMemoryOTPStore creates an empty in-memory store
func NewInMemoryOTPStore() *InMemoryOTPStore {
	return &InMemoryOTPStore{entries: make(map[string]*otpRecord), now: time.Now}
}

// Save stores entry under id for ttl
func (s *InMemoryOTPStore) Save(_ context.Context, id string, entry OTPEntry, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[id] = &otpRecord{entry: entry, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *InMemoryOTPStore) live(id string) (*otpRecord, bool) {
	rec, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(rec.expiresAt) {
		delete(s.entries, id)
		return nil, false
	}
	return rec, true
}

// Delete removes a confirmation
func (s *InMemoryOTPStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Consume checks code under the store lock
func (s *InMemoryOTPStore) Consume(_ context.Context, id, code string, maxAttempts int) (*OTPEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.live(id)
	if !ok {
		return nil, ErrOTPNotFound
	}
	if rec.entry.Attempts < maxAttempts && rec.entry.Matches(code) {
		delete(s.entries, id)
		entry := rec.entry
		return &entry, nil
	}
	rec.entry.Attempts++
	if rec.entry.Attempts >= maxAttempts {
		delete(s.entries, id)
		return nil, ErrOTPExhausted
	}
	return nil, ErrOTPMismatch
}

var _ OTPStore = (*InMemoryOTPStore)(nil)
