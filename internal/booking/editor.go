package booking

import (
	"context"
	"errors"
	"sync"

	"github.com/hitoshi/hoteladmin/internal/model"
)

// ErrSaveInProgress は保存処理の実行中に再度保存しようとした場合のエラー。
var ErrSaveInProgress = errors.New("status save already in progress")

// StatusUpdater は予約ステータスを書き込むインターフェース。
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, token, id string, status model.BookingStatus) error
}

// StatusEditor は1件の予約のステータス編集を扱う。
// 選択中の値と保存済みの値を分けて保持し、保存が成功した場合のみ保存済みの値を更新する。
type StatusEditor struct {
	updater   StatusUpdater
	token     string
	bookingID string

	mu        sync.Mutex
	persisted model.BookingStatus
	staged    model.BookingStatus
	saving    bool
}

// NewStatusEditor は予約の現在のステータスからStatusEditorを生成する。
// ステータス未設定の予約はpendingとして扱う。
func NewStatusEditor(updater StatusUpdater, token string, b *model.Booking) *StatusEditor {
	current := b.StatusOrPending()
	return &StatusEditor{
		updater:   updater,
		token:     token,
		bookingID: b.ID,
		persisted: current,
		staged:    current,
	}
}

// Stage は保存前のステータスを選択する。未定義のステータスは拒否する。
func (e *StatusEditor) Stage(status model.BookingStatus) error {
	if !status.Valid() {
		return model.NewInvalidStatusError(string(status))
	}
	e.mu.Lock()
	e.staged = status
	e.mu.Unlock()
	return nil
}

// Staged は選択中のステータスを返す。
func (e *StatusEditor) Staged() model.BookingStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staged
}

// Persisted は保存済みのステータスを返す。
func (e *StatusEditor) Persisted() model.BookingStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persisted
}

// Dirty は未保存の変更があるかを返す。
func (e *StatusEditor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staged != e.persisted
}

// Save は選択中のステータスを保存する。
// 失敗した場合は保存済みの値を変更せずにエラーを返す。
func (e *StatusEditor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	e.saving = true
	status := e.staged
	e.mu.Unlock()

	err := e.updater.UpdateStatus(ctx, e.token, e.bookingID, status)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		return err
	}
	e.persisted = status
	return nil
}
