// Package store は外部データストア（PostgREST形式のREST API）へのクライアントを提供する。
// 予約・管理者ロール・プロフィールの読み取りと予約ステータスの部分更新を行う。
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// restPathPrefix はREST APIのパスプレフィックス。
	restPathPrefix = "/rest/v1/"
	// maxErrorBodySize はエラーレスポンスとして読み取る最大バイト数。
	maxErrorBodySize = 64 * 1024
)

// Recorder は外部リクエストの計測を記録するインターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordUpstreamRequest(operation string, statusCode int, duration time.Duration)
}

// Error は外部データストアが返したエラーを表す。
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: data store returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: data store returned status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Client は外部データストアのRESTクライアント。
// リクエストにはAPIキーヘッダーと、呼び出し元セッションのBearerトークンを付与する。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	recorder   Recorder
	logger     *slog.Logger
}

// NewClient はClientを生成する。recorderがnilの場合は計測しない。
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

// request は1回のREST呼び出しを表す。
type request struct {
	op     string
	method string
	table  string
	query  string
	token  string
	body   any
	header http.Header
}

// do はリクエストを送信し、2xx以外のレスポンスを*Errorに変換する。
// 成功時はレスポンスを返し、ボディのクローズは呼び出し元の責任とする。
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request body: %w", req.op, err)
		}
		body = bytes.NewReader(payload)
	}

	url := c.baseURL + restPathPrefix + req.table
	if req.query != "" {
		url += "?" + req.query
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", req.op, err)
	}
	httpReq.Header.Set("apikey", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	for key, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(req.op, 0, start)
		c.logger.Error("data store request failed",
			slog.String("op", req.op),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s: request failed: %w", req.op, err)
	}
	c.record(req.op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := &Error{
			Op:         req.op,
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
		c.logger.Warn("data store returned error status",
			slog.String("op", req.op),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	return resp, nil
}

// decodeRows はJSON配列のレスポンスボディをデコードする。
func decodeRows[T any](op string, resp *http.Response) ([]T, error) {
	defer resp.Body.Close()
	var rows []T
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return rows, nil
}

func (c *Client) record(op string, statusCode int, start time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordUpstreamRequest(op, statusCode, time.Since(start))
}

// readErrorMessage はPostgRESTのエラーボディからmessageを取り出す。
// JSONでない場合は本文をそのまま返す。
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(bytes.TrimSpace(raw))
}
