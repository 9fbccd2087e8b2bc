package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/hoteladmin/internal/model"
)

// redisKeyPrefix はセッションキーのプレフィックス。
const redisKeyPrefix = "hoteladmin:session:"

// redisSession はRedisに保存するセッションのJSON表現。
type redisSession struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// 有効期限はキーのTTLで管理するため、期限切れの削除はRedisに任せる。
type RedisSessionRepo struct {
	client redis.UniversalClient
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client redis.UniversalClient) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

// Create はセッションを有効期限付きで保存する。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("failed to create session: already expired")
	}
	if err := r.save(ctx, session, ttl); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。存在しない場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if !rs.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	return &model.Session{
		ID:             rs.ID,
		UserID:         rs.UserID,
		Email:          rs.Email,
		AccessToken:    rs.AccessToken,
		RefreshToken:   rs.RefreshToken,
		TokenExpiresAt: rs.TokenExpiresAt,
		ExpiresAt:      rs.ExpiresAt,
		CreatedAt:      rs.CreatedAt,
	}, nil
}

// UpdateTokens はセッションのトークンを更新する。TTLは維持する。
func (r *RedisSessionRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, tokenExpiresAt time.Time) error {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to update session tokens: %w", err)
	}
	if session == nil {
		return nil
	}
	session.AccessToken = accessToken
	session.RefreshToken = refreshToken
	session.TokenExpiresAt = tokenExpiresAt

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.save(ctx, session, ttl); err != nil {
		return fmt.Errorf("failed to update session tokens: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired はTTLで自動削除されるため何もしない。
func (r *RedisSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (r *RedisSessionRepo) save(ctx context.Context, session *model.Session, ttl time.Duration) error {
	raw, err := json.Marshal(redisSession{
		ID:             session.ID,
		UserID:         session.UserID,
		Email:          session.Email,
		AccessToken:    session.AccessToken,
		RefreshToken:   session.RefreshToken,
		TokenExpiresAt: session.TokenExpiresAt,
		ExpiresAt:      session.ExpiresAt,
		CreatedAt:      session.CreatedAt,
	})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+session.ID, raw, ttl).Err()
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
