// Package identity は外部認証プロバイダー（GoTrue互換API）のクライアントを提供する。
// パスワードログイン、マジックリンク送信、トークン更新、ログアウトを扱う。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const authPathPrefix = "/auth/v1"

// AuthError は認証プロバイダーが拒否したリクエストを表す。
// ログイン画面にメッセージをそのまま表示できる。
type AuthError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	return e.Message
}

// Tokens は認証プロバイダーが発行したトークン一式を表す。
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         TokenUser `json:"user"`
}

// TokenUser はトークンレスポンスに含まれるユーザー情報。
type TokenUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Expiry はアクセストークンの有効期限を返す。
func (t *Tokens) Expiry(now time.Time) time.Time {
	if t.ExpiresAt > 0 {
		return time.Unix(t.ExpiresAt, 0)
	}
	if t.ExpiresIn > 0 {
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// Recorder は外部リクエストの計測を記録するインターフェース。
type Recorder interface {
	RecordUpstreamRequest(operation string, statusCode int, duration time.Duration)
}

// Client は認証プロバイダーのクライアント。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	recorder   Recorder
	logger     *slog.Logger
}

// NewClient はClientを生成する。
func NewClient(baseURL, apiKey string, httpClient *http.Client, recorder Recorder, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		recorder:   recorder,
		logger:     logger,
	}
}

// SignInWithPassword はメールアドレスとパスワードでログインし、トークンを取得する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Tokens, error) {
	var tokens Tokens
	err := c.post(ctx, "sign_in_password", "/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &tokens)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// SignInWithMagicLink はログイン用のマジックリンクをメール送信する。
// 未登録のメールアドレスに対してアカウントを自動作成しない。
func (c *Client) SignInWithMagicLink(ctx context.Context, email, redirectTo string) error {
	path := "/otp"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.post(ctx, "sign_in_magic_link", path, "", map[string]any{
		"email":       email,
		"create_user": false,
	}, nil)
}

// VerifyOTP はマジックリンクのトークンハッシュを検証し、トークンを取得する。
func (c *Client) VerifyOTP(ctx context.Context, tokenHash, otpType string) (*Tokens, error) {
	if otpType == "" {
		otpType = "magiclink"
	}
	var tokens Tokens
	err := c.post(ctx, "verify_otp", "/verify", "", map[string]string{
		"token_hash": tokenHash,
		"type":       otpType,
	}, &tokens)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Refresh はリフレッシュトークンを使ってトークンを更新する。
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	var tokens Tokens
	err := c.post(ctx, "refresh_token", "/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": refreshToken,
	}, &tokens)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// SignOut はアクセストークンを失効させる。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.post(ctx, "sign_out", "/logout", accessToken, nil, nil)
}

// post はJSONボディでPOSTし、成功時はoutにデコードする。outがnilの場合はボディを破棄する。
func (c *Client) post(ctx context.Context, op, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request body: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPathPrefix+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(op, 0, start)
		c.logger.Error("auth provider request failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()
	c.record(op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		authErr := &AuthError{
			StatusCode: resp.StatusCode,
			Message:    readAuthErrorMessage(resp.Body),
		}
		c.logger.Warn("auth provider rejected request",
			slog.String("op", op),
			slog.Int("http_status", resp.StatusCode),
		)
		return authErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func (c *Client) record(op string, statusCode int, start time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordUpstreamRequest(op, statusCode, time.Since(start))
}

// readAuthErrorMessage は認証プロバイダーのエラーボディから表示用メッセージを取り出す。
// error_description, msg, message, error の順に採用する。
func readAuthErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil || len(raw) == 0 {
		return "Authentication failed."
	}
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, m := range []string{payload.ErrorDescription, payload.Msg, payload.Message, payload.Error} {
		if m != "" {
			return m
		}
	}
	return "Authentication failed."
}
