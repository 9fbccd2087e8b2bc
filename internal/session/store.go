// Package session は管理画面のログインセッションを管理する。
// セッションは明示的に生成したStoreが保持し、変更は購読者へ通知される。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/hoteladmin/internal/model"
	"github.com/hitoshi/hoteladmin/internal/repository"
)

// EventKind はセッション変更の種類を表す。
type EventKind int

const (
	// SignedIn はセッションが作成されたことを表す。
	SignedIn EventKind = iota
	// SignedOut はセッションが破棄されたことを表す。
	SignedOut
	// Refreshed はトークンが更新されたことを表す。
	Refreshed
)

// String はイベント種別の名前を返す。
func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case Refreshed:
		return "refreshed"
	default:
		return "unknown"
	}
}

// Event は購読者へ通知されるセッション変更。
type Event struct {
	Kind    EventKind
	Session *model.Session
}

// Credentials は認証プロバイダーから得たセッション作成用の情報。
type Credentials struct {
	UserID         string
	Email          string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
}

// Store はセッションの作成・取得・更新・破棄を行う。
type Store struct {
	repo   repository.SessionRepository
	maxAge time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	subs   map[int]func(Event)
	nextID int
}

// NewStore はStoreを生成する。maxAgeはセッションの有効期間。
func NewStore(repo repository.SessionRepository, maxAge time.Duration) *Store {
	return &Store{
		repo:   repo,
		maxAge: maxAge,
		now:    time.Now,
		subs:   make(map[int]func(Event)),
	}
}

// Subscribe はセッション変更の購読を登録し、購読を解除する関数を返す。
// 解除関数は複数回呼び出しても安全。
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Subscribers は登録中の購読者数を返す。
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Create は新しいセッションを作成して保存する。
func (s *Store) Create(ctx context.Context, creds Credentials) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:             id,
		UserID:         creds.UserID,
		Email:          creds.Email,
		AccessToken:    creds.AccessToken,
		RefreshToken:   creds.RefreshToken,
		TokenExpiresAt: creds.TokenExpiresAt,
		ExpiresAt:      now.Add(s.maxAge),
		CreatedAt:      now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.publish(Event{Kind: SignedIn, Session: session})
	return session, nil
}

// Get は指定IDのセッションを返す。存在しないか期限切れの場合はnil。
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// Refresh はセッションのトークンを差し替える。
func (s *Store) Refresh(ctx context.Context, session *model.Session, accessToken, refreshToken string, tokenExpiresAt time.Time) error {
	if err := s.repo.UpdateTokens(ctx, session.ID, accessToken, refreshToken, tokenExpiresAt); err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}

	session.AccessToken = accessToken
	session.RefreshToken = refreshToken
	session.TokenExpiresAt = tokenExpiresAt

	s.publish(Event{Kind: Refreshed, Session: session})
	return nil
}

// Delete はセッションを破棄する。存在しないIDでもエラーにしない。
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if session != nil {
		s.publish(Event{Kind: SignedOut, Session: session})
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

func (s *Store) publish(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
