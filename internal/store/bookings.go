package store

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/hoteladmin/internal/model"
)

// BookingPage は予約一覧の1ページ分の取得結果を表す。
type BookingPage struct {
	Bookings []model.Booking
	Total    int // 絞り込み条件に一致する総件数
}

// ListBookings は絞り込み条件とページ番号に一致する予約を取得する。
// 総件数はContent-Rangeヘッダーから取得し、取得できない場合は返却行数で代用する。
func (c *Client) ListBookings(ctx context.Context, token string, filters model.BookingFilters, page, pageSize int) (*BookingPage, error) {
	const op = "list_bookings"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		table:  "bookings",
		query:  BuildBookingQuery(filters, page, pageSize),
		token:  token,
		header: http.Header{"Prefer": []string{"count=exact"}},
	})
	if err != nil {
		return nil, err
	}
	contentRange := resp.Header.Get("Content-Range")

	rows, err := decodeRows[model.Booking](op, resp)
	if err != nil {
		return nil, err
	}

	return &BookingPage{
		Bookings: rows,
		Total:    ParseTotal(contentRange, len(rows)),
	}, nil
}

// GetBooking は指定IDの予約を取得する。見つからない場合はnilを返す。
func (c *Client) GetBooking(ctx context.Context, token, id string) (*model.Booking, error) {
	const op = "get_booking"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		table:  "bookings",
		query:  encodeFilter("id", "eq", id) + "&limit=1",
		token:  token,
	})
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows[model.Booking](op, resp)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// UpdateBookingStatus は予約のstatusフィールドのみを部分更新する。
func (c *Client) UpdateBookingStatus(ctx context.Context, token, id string, status model.BookingStatus) error {
	const op = "update_booking_status"
	if !status.Valid() {
		return fmt.Errorf("%s: invalid status %q", op, status)
	}
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPatch,
		table:  "bookings",
		query:  encodeFilter("id", "eq", id),
		token:  token,
		body:   map[string]model.BookingStatus{"status": status},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CountBookingsByStatus は指定ステータスの予約件数を返す。
// statusに "all" を指定すると全件数を返す。
func (c *Client) CountBookingsByStatus(ctx context.Context, token, status string) (int, error) {
	const op = "count_bookings"
	query := "select=id&limit=1"
	if status != "" && status != model.StatusFilterAll {
		query = encodeFilter("status", "eq", status) + "&" + query
	}
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		table:  "bookings",
		query:  query,
		token:  token,
		header: http.Header{"Prefer": []string{"count=exact"}},
	})
	if err != nil {
		return 0, err
	}
	contentRange := resp.Header.Get("Content-Range")

	rows, err := decodeRows[struct {
		ID string `json:"id"`
	}](op, resp)
	if err != nil {
		return 0, err
	}
	return ParseTotal(contentRange, len(rows)), nil
}
