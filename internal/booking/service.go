// Package booking は予約の一覧・詳細・ステータス更新のビジネスロジックを提供する。
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/hoteladmin/internal/messaging"
	"github.com/hitoshi/hoteladmin/internal/model"
	"github.com/hitoshi/hoteladmin/internal/store"
)

// Store は外部データストアの予約操作のインターフェース。
type Store interface {
	ListBookings(ctx context.Context, token string, filters model.BookingFilters, page, pageSize int) (*store.BookingPage, error)
	GetBooking(ctx context.Context, token, id string) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, token, id string, status model.BookingStatus) error
	FindUserWhatsApp(ctx context.Context, token, userID string) (string, error)
	CountBookingsByStatus(ctx context.Context, token, status string) (int, error)
}

// StatusRecorder はステータス更新の結果を記録するインターフェース。
type StatusRecorder interface {
	RecordStatusUpdate(status string, success bool)
}

// ListResult は予約一覧の1ページ分の結果。
type ListResult struct {
	Filters    model.BookingFilters
	Bookings   []model.Booking
	Total      int
	Pagination Pagination
}

// Detail は予約詳細と連絡先。
type Detail struct {
	Booking *model.Booking
	Contact messaging.Contact
}

// StatusCount はステータスごとの予約件数。
type StatusCount struct {
	Status model.BookingStatus
	Count  int
}

// Summary はダッシュボードに表示する集計。
type Summary struct {
	Counts []StatusCount
	Recent []model.Booking
	Total  int
}

// Service は予約に関するビジネスロジックを提供する。
type Service struct {
	store    Store
	recorder StatusRecorder
	pageSize int
}

// NewService はServiceを生成する。pageSizeが0以下の場合は既定値を使う。
func NewService(s Store, recorder StatusRecorder, pageSize int) *Service {
	if pageSize < 1 {
		pageSize = store.DefaultPageSize
	}
	return &Service{store: s, recorder: recorder, pageSize: pageSize}
}

// PageSize は1ページあたりの件数を返す。
func (s *Service) PageSize() int {
	return s.pageSize
}

// NormalizeFilters は画面やAPIから受け取った絞り込み条件を正規化・検証する。
// ステータス未指定は "all"、ゲスト検索は前後の空白だけを落とし、入力された文字列のまま検索する。
func NormalizeFilters(f model.BookingFilters) (model.BookingFilters, error) {
	status := strings.TrimSpace(f.Status)
	if status == "" {
		status = model.StatusFilterAll
	}
	if status != model.StatusFilterAll && !model.BookingStatus(status).Valid() {
		return model.BookingFilters{}, model.NewInvalidStatusError(status)
	}

	out := model.BookingFilters{
		Status:    status,
		Guest:     strings.TrimSpace(f.Guest),
		StartDate: strings.TrimSpace(f.StartDate),
		EndDate:   strings.TrimSpace(f.EndDate),
	}
	for _, d := range []string{out.StartDate, out.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return model.BookingFilters{}, model.NewInvalidDateFilterError(d)
		}
	}
	return out, nil
}

// List は絞り込み条件とページ番号で予約一覧を取得する。
func (s *Service) List(ctx context.Context, token string, filters model.BookingFilters, page int) (*ListResult, error) {
	page = model.ClampPage(page)

	res, err := s.store.ListBookings(ctx, token, filters, page, s.pageSize)
	if err != nil {
		slog.Error("failed to list bookings",
			slog.Int("page", page),
			slog.String("status", filters.Status),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return &ListResult{
		Filters:    filters,
		Bookings:   res.Bookings,
		Total:      res.Total,
		Pagination: NewPagination(res.Total, page, s.pageSize),
	}, nil
}

// Get は予約詳細と連絡先WhatsApp番号を取得する。
// ゲスト番号がなくアカウント予約の場合はプロフィールの番号を参照する。
func (s *Service) Get(ctx context.Context, token, id string) (*Detail, error) {
	b, err := s.store.GetBooking(ctx, token, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if b == nil {
		return nil, model.NewBookingNotFoundError(id)
	}

	guest := deref(b.GuestWhatsAppNumber)
	var account string
	if strings.TrimSpace(guest) == "" && deref(b.UserID) != "" {
		account, err = s.store.FindUserWhatsApp(ctx, token, *b.UserID)
		if err != nil {
			slog.Warn("failed to fetch account whatsapp number",
				slog.String("booking_id", b.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return &Detail{
		Booking: b,
		Contact: messaging.ResolveContact(guest, account),
	}, nil
}

// UpdateStatus は予約ステータスを更新する。
// 未定義のステータスは書き込み前に拒否する。
func (s *Service) UpdateStatus(ctx context.Context, token, id string, status model.BookingStatus) error {
	if !status.Valid() {
		return model.NewInvalidStatusError(string(status))
	}

	err := s.store.UpdateBookingStatus(ctx, token, id, status)
	if s.recorder != nil {
		s.recorder.RecordStatusUpdate(string(status), err == nil)
	}
	if err != nil {
		slog.Error("failed to update booking status",
			slog.String("booking_id", id),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	slog.Info("booking status updated",
		slog.String("booking_id", id),
		slog.String("status", string(status)),
	)
	return nil
}

// Summarize はステータス別件数と最新の予約をまとめる。
func (s *Service) Summarize(ctx context.Context, token string) (*Summary, error) {
	summary := &Summary{}
	for _, st := range model.BookingStatuses() {
		n, err := s.store.CountBookingsByStatus(ctx, token, string(st))
		if err != nil {
			return nil, fmt.Errorf("failed to count %s bookings: %w", st, err)
		}
		summary.Counts = append(summary.Counts, StatusCount{Status: st, Count: n})
	}

	recent, err := s.List(ctx, token, model.BookingFilters{Status: model.StatusFilterAll}, 1)
	if err != nil {
		return nil, err
	}
	summary.Recent = recent.Bookings
	summary.Total = recent.Total
	return summary, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
