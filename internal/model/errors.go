// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, booking, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidStatus     = "INVALID_STATUS"
	ErrCodeBookingNotFound   = "BOOKING_NOT_FOUND"
	ErrCodeBookingsFetch     = "BOOKINGS_FETCH_FAILED"
	ErrCodeBookingUpdate     = "BOOKING_UPDATE_FAILED"
	ErrCodeInvalidDateFilter = "INVALID_DATE_FILTER"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentification requise.",
		Category: "auth",
		Action:   "Connectez-vous pour continuer.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Ce compte n’est pas autorisé à accéder à l’administration.",
		Category: "auth",
		Action:   "Contactez un administrateur pour obtenir un accès.",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Requête invalide : %s", reason),
		Category: "validation",
		Action:   "Vérifiez les paramètres envoyés.",
	}
}

// NewInvalidStatusError は未定義ステータスの指定エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("Statut inconnu : %s", status),
		Category: "validation",
		Action:   "Choisissez pending, confirmed, cancelled, checked_in ou checked_out.",
	}
}

// NewInvalidDateFilterError は日付フィルタの形式エラーを生成する。
func NewInvalidDateFilterError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDateFilter,
		Message:  fmt.Sprintf("Date invalide : %s", value),
		Category: "validation",
		Action:   "Utilisez le format AAAA-MM-JJ.",
	}
}

// NewBookingNotFoundError は予約未検出エラーを生成する。
func NewBookingNotFoundError(bookingID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookingNotFound,
		Message:  fmt.Sprintf("Réservation introuvable : %s", bookingID),
		Category: "booking",
		Action:   "Vérifiez l’identifiant de la réservation.",
	}
}

// NewBookingsFetchError は予約取得失敗エラーを生成する。
func NewBookingsFetchError() *APIError {
	return &APIError{
		Code:     ErrCodeBookingsFetch,
		Message:  "Impossible de charger les réservations.",
		Category: "booking",
		Action:   "Réessayez dans quelques instants.",
	}
}

// NewBookingUpdateError は予約更新失敗エラーを生成する。
func NewBookingUpdateError() *APIError {
	return &APIError{
		Code:     ErrCodeBookingUpdate,
		Message:  "Impossible de mettre à jour la réservation.",
		Category: "booking",
		Action:   "Le statut précédent a été conservé. Réessayez dans quelques instants.",
	}
}
