package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hoteladmin/internal/access"
	"github.com/hitoshi/hoteladmin/internal/booking"
	"github.com/hitoshi/hoteladmin/internal/messaging"
	"github.com/hitoshi/hoteladmin/internal/middleware"
	"github.com/hitoshi/hoteladmin/internal/model"
)

// APIHandler は予約のJSON APIハンドラー。
type APIHandler struct {
	service BookingServiceInterface
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(service BookingServiceInterface) *APIHandler {
	return &APIHandler{service: service}
}

// --- レスポンス型 ---

type bookingListResponse struct {
	Bookings   []model.Booking `json:"bookings"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
	HasPrev    bool            `json:"has_prev"`
	HasNext    bool            `json:"has_next"`
}

type whatsAppResponse struct {
	Number string                  `json:"number,omitempty"`
	Source messaging.ContactSource `json:"source,omitempty"`
	URL    string                  `json:"url,omitempty"`
}

type bookingDetailResponse struct {
	Booking  *model.Booking   `json:"booking"`
	WhatsApp whatsAppResponse `json:"whatsapp"`
}

type statusRequest struct {
	Status model.BookingStatus `json:"status"`
}

type statusResponse struct {
	ID     string              `json:"id"`
	Status model.BookingStatus `json:"status"`
}

type menuItemResponse struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

type meResponse struct {
	Email string             `json:"email"`
	Role  model.Role         `json:"role"`
	Menu  []menuItemResponse `json:"menu"`
}

// ListBookings は予約一覧を返す。
// GET /api/bookings?status=&guest=&start_date=&end_date=&page=
func (h *APIHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	raw, page := parseListQuery(r.URL.Query())

	filters, err := booking.NormalizeFilters(raw)
	if err != nil {
		handleServiceError(w, err, model.NewBookingsFetchError())
		return
	}

	result, err := h.service.List(r.Context(), accessToken(r), filters, page)
	if err != nil {
		handleServiceError(w, err, model.NewBookingsFetchError())
		return
	}

	bookings := result.Bookings
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookingListResponse{
		Bookings:   bookings,
		Total:      result.Total,
		Page:       result.Pagination.Page,
		PageSize:   result.Pagination.PageSize,
		TotalPages: result.Pagination.TotalPages,
		HasPrev:    result.Pagination.HasPrev(),
		HasNext:    result.Pagination.HasNext(),
	})
}

// GetBooking は予約詳細と連絡先を返す。
// GET /api/bookings/{id}
func (h *APIHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), accessToken(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err, model.NewBookingsFetchError())
		return
	}

	resp := bookingDetailResponse{Booking: detail.Booking}
	if detail.Contact.Available() {
		resp.WhatsApp = whatsAppResponse{
			Number: detail.Contact.Number,
			Source: detail.Contact.Source,
			URL:    detail.Contact.WhatsAppURL(detail.Booking.ID),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus は予約ステータスを更新する。
// PATCH /api/bookings/{id}/status {"status": "confirmed"}
func (h *APIHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("corps JSON invalide"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.UpdateStatus(r.Context(), accessToken(r), id, req.Status); err != nil {
		handleServiceError(w, err, model.NewBookingUpdateError())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{ID: id, Status: req.Status})
}

// Me はログイン中の管理者とメニューを返す。
// GET /api/me
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	state := middleware.AuthStateFromContext(r.Context())

	resp := meResponse{Email: state.Email(), Menu: []menuItemResponse{}}
	if state.AdminUser != nil {
		resp.Role = state.AdminUser.Role
		for _, item := range access.VisibleMenu(state.AdminUser.Role) {
			resp.Menu = append(resp.Menu, menuItemResponse{Label: item.Label, Path: item.Path})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// apiSection はAPIのパスをロール判定に使う画面のパスに対応づける。
func apiSection(r *http.Request) string {
	if strings.HasPrefix(r.URL.Path, "/api/bookings") {
		return "/reservations"
	}
	return access.HomePath
}

// handleServiceError はサービス層から返されたエラーを統一エラーフォーマットで返す。
// APIError以外はfallbackとして扱う。
func handleServiceError(w http.ResponseWriter, err error, fallback *model.APIError) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForAPIError(apiErr), apiErr)
		return
	}

	slog.Error("upstream request failed", slog.String("error", err.Error()))
	middleware.WriteErrorResponse(w, middleware.StatusForAPIError(fallback), fallback)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
