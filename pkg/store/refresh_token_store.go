package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidRefreshToken indicates the token is unknown, expired, or already rotated.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// RefreshTokenStore persists one-time refresh tokens with rotation.
// A rotated token is consumed: presenting it again fails validation.
type RefreshTokenStore interface {
	NewToken(userID string, ttl time.Duration) (string, error)
	RotateToken(token string, ttl time.Duration) (userID string, newToken string, err error)
	DeleteToken(token string) error
	RevokeUserRefreshTokens(userID string) error
}

type refreshRecord struct {
	userID string
	expiry time.Time
}

// MemoryRefreshTokenStore keeps refresh tokens in memory.
type MemoryRefreshTokenStore struct {
	mu         sync.Mutex
	tokens     map[string]refreshRecord       // tokenHash -> record
	userTokens map[string]map[string]struct{} // userID -> token hashes
}

// NewMemoryRefreshTokenStore constructs an in-memory refresh token store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{
		tokens:     make(map[string]refreshRecord),
		userTokens: make(map[string]map[string]struct{}),
	}
}

// NewToken issues and stores a new refresh token for the user.
func (s *MemoryRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	tokenHash := refreshTokenHash(token)

	s.mu.Lock()
	s.tokens[tokenHash] = refreshRecord{
		userID: userID,
		expiry: time.Now().UTC().Add(ttl),
	}
	if s.userTokens[userID] == nil {
		s.userTokens[userID] = make(map[string]struct{})
	}
	s.userTokens[userID][tokenHash] = struct{}{}
	s.mu.Unlock()
	return token, nil
}

// RotateToken consumes a valid token and issues a fresh one for the same user.
func (s *MemoryRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	tokenHash := refreshTokenHash(token)
	now := time.Now().UTC()

	s.mu.Lock()
	rec, ok := s.tokens[tokenHash]
	if ok {
		s.deleteHashLocked(tokenHash, rec.userID)
	}
	if !ok || now.After(rec.expiry) {
		s.mu.Unlock()
		return "", "", ErrInvalidRefreshToken
	}
	s.mu.Unlock()

	newToken, err := s.NewToken(rec.userID, ttl)
	if err != nil {
		return "", "", err
	}
	return rec.userID, newToken, nil
}

// DeleteToken removes a refresh token, if present.
func (s *MemoryRefreshTokenStore) DeleteToken(token string) error {
	tokenHash := refreshTokenHash(token)
	s.mu.Lock()
	if rec, ok := s.tokens[tokenHash]; ok {
		s.deleteHashLocked(tokenHash, rec.userID)
	}
	s.mu.Unlock()
	return nil
}

// RevokeUserRefreshTokens removes every refresh token issued to the user.
func (s *MemoryRefreshTokenStore) RevokeUserRefreshTokens(userID string) error {
	s.mu.Lock()
	for tokenHash := range s.userTokens[userID] {
		delete(s.tokens, tokenHash)
	}
	delete(s.userTokens, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshTokenStore) deleteHashLocked(tokenHash, userID string) {
	delete(s.tokens, tokenHash)
	if hashes, ok := s.userTokens[userID]; ok {
		delete(hashes, tokenHash)
		if len(hashes) == 0 {
			delete(s.userTokens, userID)
		}
	}
}

// RedisRefreshTokenStore stores refresh tokens in Redis with TTL.
type RedisRefreshTokenStore struct {
	client *redis.Client
}

// NewRedisRefreshTokenStore builds a Redis-backed refresh token store.
func NewRedisRefreshTokenStore(addr, password string) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// NewToken issues and stores a new refresh token for the user.
func (s *RedisRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	tokenHash := refreshTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshTokenRedisKey(tokenHash), userID, ttl)
	pipe.SAdd(ctx, refreshUserRedisKey(userID), tokenHash)
	pipe.Expire(ctx, refreshUserRedisKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// RotateToken consumes a valid token and issues a fresh one for the same user.
// GETDEL makes consumption atomic: concurrent rotation of the same token
// succeeds for exactly one caller.
func (s *RedisRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	tokenHash := refreshTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	userID, err := s.client.GetDel(ctx, refreshTokenRedisKey(tokenHash)).Result()
	if err == redis.Nil {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", err
	}
	if err := s.client.SRem(ctx, refreshUserRedisKey(userID), tokenHash).Err(); err != nil && err != redis.Nil {
		return "", "", err
	}

	newToken, err := s.NewToken(userID, ttl)
	if err != nil {
		return "", "", err
	}
	return userID, newToken, nil
}

// DeleteToken removes a refresh token, if present.
func (s *RedisRefreshTokenStore) DeleteToken(token string) error {
	tokenHash := refreshTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	userID, err := s.client.GetDel(ctx, refreshTokenRedisKey(tokenHash)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.client.SRem(ctx, refreshUserRedisKey(userID), tokenHash).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// RevokeUserRefreshTokens removes every refresh token issued to the user.
func (s *RedisRefreshTokenStore) RevokeUserRefreshTokens(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	hashes, err := s.client.SMembers(ctx, refreshUserRedisKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, tokenHash := range hashes {
		pipe.Del(ctx, refreshTokenRedisKey(tokenHash))
	}
	pipe.Del(ctx, refreshUserRedisKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func refreshTokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func refreshTokenRedisKey(tokenHash string) string {
	return fmt.Sprintf("guidehub:refresh:token:%s", tokenHash)
}

func refreshUserRedisKey(userID string) string {
	return fmt.Sprintf("guidehub:refresh:user:%s", userID)
}
