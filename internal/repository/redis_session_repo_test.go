package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*RedisSessionRepo)(nil)
}

func TestRedisSessionRepo_Create_AlreadyExpired(t *testing.T) {
	// 期限切れセッションはRedisへ到達する前にエラーとなる
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	repo := NewRedisSessionRepo(client)

	err := repo.Create(context.Background(), newTestSession("old", time.Now().Add(-time.Minute)))
	if err == nil {
		t.Fatal("expected error for expired session, got nil")
	}
}

func TestRedisSessionRepo_DeleteExpired_NoOp(t *testing.T) {
	repo := NewRedisSessionRepo(nil)
	n, err := repo.DeleteExpired(context.Background())
	if err != nil || n != 0 {
		t.Errorf("DeleteExpired = (%d, %v), want (0, nil)", n, err)
	}
}

// openTestRedis はTEST_REDIS_URLが設定されている場合のみ接続を返す。
func openTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL が未設定のためスキップ")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("invalid TEST_REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("テスト用Redisに接続できません（スキップ）: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisSessionRepo_Lifecycle(t *testing.T) {
	client := openTestRedis(t)
	repo := NewRedisSessionRepo(client)
	ctx := context.Background()

	s := newTestSession("redis-1", time.Now().Add(time.Hour))
	t.Cleanup(func() { _ = repo.DeleteByID(ctx, s.ID) })

	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ttl := client.TTL(ctx, redisKeyPrefix+s.ID).Val()
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}

	got, err := repo.FindByID(ctx, s.ID)
	if err != nil || got == nil {
		t.Fatalf("FindByID = (%+v, %v)", got, err)
	}
	if got.Email != s.Email {
		t.Errorf("Email = %q, want %q", got.Email, s.Email)
	}

	if err := repo.UpdateTokens(ctx, s.ID, "a2", "r2", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("UpdateTokens: %v", err)
	}
	got, _ = repo.FindByID(ctx, s.ID)
	if got.AccessToken != "a2" || got.RefreshToken != "r2" {
		t.Errorf("tokens not updated: %+v", got)
	}

	if err := repo.DeleteByID(ctx, s.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if got, _ := repo.FindByID(ctx, s.ID); got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}
