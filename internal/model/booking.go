// Package model はドメインモデルを定義する。
package model

import "strings"

// BookingStatus は予約のステータスを表す。
type BookingStatus string

const (
	// BookingStatusPending は確認待ちの予約。
	BookingStatusPending BookingStatus = "pending"
	// BookingStatusConfirmed は確定済みの予約。
	BookingStatusConfirmed BookingStatus = "confirmed"
	// BookingStatusCancelled はキャンセルされた予約。
	BookingStatusCancelled BookingStatus = "cancelled"
	// BookingStatusCheckedIn はチェックイン済みの予約。
	BookingStatusCheckedIn BookingStatus = "checked_in"
	// BookingStatusCheckedOut はチェックアウト済みの予約。
	BookingStatusCheckedOut BookingStatus = "checked_out"
)

// StatusFilterAll はステータスで絞り込まないことを示す番兵値。
const StatusFilterAll = "all"

// BookingStatuses は選択可能な全ステータスを表示順に返す。
func BookingStatuses() []BookingStatus {
	return []BookingStatus{
		BookingStatusPending,
		BookingStatusConfirmed,
		BookingStatusCancelled,
		BookingStatusCheckedIn,
		BookingStatusCheckedOut,
	}
}

// Valid は定義済みの5つのステータスのいずれかであるかを判定する。
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled,
		BookingStatusCheckedIn, BookingStatusCheckedOut:
		return true
	default:
		return false
	}
}

// Label は表示用のステータス名を返す（"checked_in" → "checked in"）。
func (s BookingStatus) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// BookingMode は予約経路（ゲスト予約かアカウント予約か）を表す。
type BookingMode string

const (
	// BookingModeGuest はアカウントなしのゲスト予約。
	BookingModeGuest BookingMode = "SANS_COMPTE"
	// BookingModeAccount はログイン済みアカウントによる予約。
	BookingModeAccount BookingMode = "AVEC_COMPTE"
)

// Label は予約経路の表示名を返す。
func (m BookingMode) Label() string {
	switch m {
	case BookingModeGuest:
		return "Réservation invité"
	case BookingModeAccount:
		return "Réservation connecté"
	default:
		return "—"
	}
}

// Booking は外部データストアのbookingsテーブルの1行を表す。
// NULL許容カラムはポインタで表現する。
type Booking struct {
	ID                  string         `json:"id"`
	Status              *BookingStatus `json:"status"`
	GuestName           *string        `json:"guest_name"`
	GuestEmail          *string        `json:"guest_email"`
	CheckIn             *string        `json:"check_in"`
	CheckOut            *string        `json:"check_out"`
	TotalAmount         *float64       `json:"total_amount"`
	CreatedAt           *string        `json:"created_at"`
	GuestWhatsAppNumber *string        `json:"guest_whatsapp_number"`
	BookingMode         *BookingMode   `json:"booking_mode"`
	UserID              *string        `json:"user_id"`
}

// StatusOrPending はステータスを返す。未設定の場合はpendingとして扱う。
func (b *Booking) StatusOrPending() BookingStatus {
	if b.Status == nil {
		return BookingStatusPending
	}
	return *b.Status
}

// BookingFilters は予約一覧の絞り込み条件を表す。
// いずれかのフィールドが変更された場合、ページは1に戻る。
type BookingFilters struct {
	Status    string // 5つのステータスのいずれか、または "all"
	Guest     string // 氏名またはメールアドレスの部分一致
	StartDate string // チェックイン日の下限（YYYY-MM-DD）
	EndDate   string // チェックアウト日の上限（YYYY-MM-DD）
}

// MaxPage は一覧で指定できるページ番号の上限。オフセット計算が溢れない範囲に収める。
const MaxPage = 100000

// ClampPage はページ番号を1からMaxPageの範囲に収める。
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}
