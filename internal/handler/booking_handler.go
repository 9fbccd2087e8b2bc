package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hoteladmin/internal/access"
	"github.com/hitoshi/hoteladmin/internal/booking"
	"github.com/hitoshi/hoteladmin/internal/middleware"
	"github.com/hitoshi/hoteladmin/internal/model"
)

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	List(ctx context.Context, token string, filters model.BookingFilters, page int) (*booking.ListResult, error)
	Get(ctx context.Context, token, id string) (*booking.Detail, error)
	UpdateStatus(ctx context.Context, token, id string, status model.BookingStatus) error
	Summarize(ctx context.Context, token string) (*booking.Summary, error)
}

// ListViewRegistry はセッションごとの予約一覧ビューを返す。
type ListViewRegistry interface {
	Get(sessionID string) *booking.ListView
}

// BookingHandler は予約画面のHTTPハンドラー。
type BookingHandler struct {
	service  BookingServiceInterface
	views    ListViewRegistry
	renderer *Renderer
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface, views ListViewRegistry, renderer *Renderer) *BookingHandler {
	return &BookingHandler{
		service:  service,
		views:    views,
		renderer: renderer,
	}
}

type summaryView struct {
	Summary *booking.Summary
	Error   string
}

type listView struct {
	Filters    model.BookingFilters
	Bookings   []model.Booking
	Pagination booking.Pagination
	PrevURL    string
	NextURL    string
	Error      string
}

type detailView struct {
	ID          string
	Booking     *model.Booking
	Contact     contactView
	WhatsAppURL string
	CopyAckMs   int64
	Persisted   model.BookingStatus
	Staged      model.BookingStatus
	Updated     bool
	Error       string
}

type contactView struct {
	Number    string
	Available bool
}

// Dashboard はステータス別件数と最新の予約を表示する。
// GET /
func (h *BookingHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	view := summaryView{}
	summary, err := h.service.Summarize(r.Context(), accessToken(r))
	if err != nil {
		view.Error = model.NewBookingsFetchError().Message
	} else {
		view.Summary = summary
	}
	h.renderer.Render(w, http.StatusOK, pageDashboard, newPage(r, "Tableau de bord", access.HomePath, view))
}

// Reports はステータス別の集計を表示する。
// GET /reports
func (h *BookingHandler) Reports(w http.ResponseWriter, r *http.Request) {
	view := summaryView{}
	summary, err := h.service.Summarize(r.Context(), accessToken(r))
	if err != nil {
		view.Error = model.NewBookingsFetchError().Message
	} else {
		view.Summary = summary
	}
	h.renderer.Render(w, http.StatusOK, pageReports, newPage(r, "Rapports", "/reports", view))
}

// Users はロールごとの閲覧可能なメニューを表示する。
// GET /users
func (h *BookingHandler) Users(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, pageUsers, newPage(r, "Utilisateurs", "/users", access.Menu))
}

// List は予約一覧を表示する。
// GET /reservations?status=&guest=&start_date=&end_date=&page=
// 絞り込み条件が前回の表示から変わった場合は1ページ目を表示する。
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	raw, page := parseListQuery(r.URL.Query())

	filters, err := booking.NormalizeFilters(raw)
	if err != nil {
		view := listView{
			Filters:    raw,
			Pagination: booking.NewPagination(0, 1, 1),
			Error:      errorMessage(err, model.NewBookingsFetchError()),
		}
		h.renderer.Render(w, http.StatusBadRequest, pageReservations, newPage(r, "Réservations", "/reservations", view))
		return
	}

	state := middleware.AuthStateFromContext(r.Context())
	lv := h.views.Get(state.Session.ID)
	loaded, current := lv.Update(r.Context(), state.Session.AccessToken, filters, page)
	if !current {
		slog.Debug("booking list superseded by a newer request",
			slog.Uint64("generation", loaded.Generation),
		)
	}

	view := listView{
		Filters:    loaded.Filters,
		Pagination: booking.NewPagination(0, loaded.Page, 1),
	}
	if loaded.Err != nil {
		view.Error = model.NewBookingsFetchError().Message
	} else if loaded.Result != nil {
		view.Bookings = loaded.Result.Bookings
		view.Pagination = loaded.Result.Pagination
	}
	if view.Pagination.HasPrev() {
		view.PrevURL = listURL(view.Filters, view.Pagination.PrevPage())
	}
	if view.Pagination.HasNext() {
		view.NextURL = listURL(view.Filters, view.Pagination.NextPage())
	}

	h.renderer.Render(w, http.StatusOK, pageReservations, newPage(r, "Réservations", "/reservations", view))
}

// Detail は予約詳細を表示する。
// GET /reservations/{id}
func (h *BookingHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.service.Get(r.Context(), accessToken(r), id)
	if err != nil {
		h.renderDetailError(w, r, id, err)
		return
	}

	current := detail.Booking.StatusOrPending()
	view := newDetailView(detail, current, current)
	view.Updated = r.URL.Query().Get("updated") == "1"
	h.renderer.Render(w, http.StatusOK, pageReservationDetail, newPage(r, "Réservation", "/reservations", view))
}

// UpdateStatus は選択したステータスを保存する。
// POST /reservations/{id}/status (status)
// 失敗した場合は保存済みのステータスのまま、エラーを表示する。
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token := accessToken(r)

	detail, err := h.service.Get(r.Context(), token, id)
	if err != nil {
		h.renderDetailError(w, r, id, err)
		return
	}

	editor := booking.NewStatusEditor(h.service, token, detail.Booking)
	if err := editor.Stage(model.BookingStatus(r.PostFormValue("status"))); err != nil {
		view := newDetailView(detail, editor.Persisted(), editor.Staged())
		view.Error = errorMessage(err, model.NewBookingUpdateError())
		h.renderer.Render(w, http.StatusBadRequest, pageReservationDetail, newPage(r, "Réservation", "/reservations", view))
		return
	}

	if err := editor.Save(r.Context()); err != nil {
		view := newDetailView(detail, editor.Persisted(), editor.Staged())
		view.Error = errorMessage(err, model.NewBookingUpdateError())
		h.renderer.Render(w, http.StatusBadGateway, pageReservationDetail, newPage(r, "Réservation", "/reservations", view))
		return
	}

	http.Redirect(w, r, "/reservations/"+url.PathEscape(id)+"?updated=1", http.StatusSeeOther)
}

func (h *BookingHandler) renderDetailError(w http.ResponseWriter, r *http.Request, id string, err error) {
	status := http.StatusBadGateway
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeBookingNotFound {
		status = http.StatusNotFound
	}
	view := detailView{ID: id, Error: errorMessage(err, model.NewBookingsFetchError())}
	h.renderer.Render(w, status, pageReservationDetail, newPage(r, "Réservation", "/reservations", view))
}

func newDetailView(detail *booking.Detail, persisted, staged model.BookingStatus) detailView {
	return detailView{
		ID:          detail.Booking.ID,
		Booking:     detail.Booking,
		Contact:     contactView{Number: detail.Contact.Number, Available: detail.Contact.Available()},
		WhatsAppURL: detail.Contact.WhatsAppURL(detail.Booking.ID),
		CopyAckMs:   copyAckMillis,
		Persisted:   persisted,
		Staged:      staged,
	}
}

// parseListQuery はクエリパラメータから絞り込み条件とページ番号を取り出す。
// ページ番号がない、または数値でない場合はbooking.PageUnsetを返す。
// 指定されたページ番号は1からmodel.MaxPageの範囲に収める。
func parseListQuery(q url.Values) (model.BookingFilters, int) {
	filters := model.BookingFilters{
		Status:    q.Get("status"),
		Guest:     q.Get("guest"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
	page, err := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	if err != nil {
		return filters, booking.PageUnset
	}
	return filters, model.ClampPage(page)
}

// listURL は絞り込み条件を保ったまま指定ページへ移動するURLを返す。
func listURL(f model.BookingFilters, page int) string {
	q := url.Values{}
	if f.Status != "" && f.Status != model.StatusFilterAll {
		q.Set("status", f.Status)
	}
	if f.Guest != "" {
		q.Set("guest", f.Guest)
	}
	if f.StartDate != "" {
		q.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("end_date", f.EndDate)
	}
	q.Set("page", strconv.Itoa(page))
	return "/reservations?" + q.Encode()
}

// accessToken はリクエストのセッションが保持するアクセストークンを返す。
func accessToken(r *http.Request) string {
	state := middleware.AuthStateFromContext(r.Context())
	if state.Session == nil {
		return ""
	}
	return state.Session.AccessToken
}

// errorMessage は画面に表示するエラーメッセージを返す。
// APIError以外は詳細を出さずにfallbackの文言を使う。
func errorMessage(err error, fallback *model.APIError) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return fallback.Message
}
