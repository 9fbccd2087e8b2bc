// Package messaging はゲストへの連絡用ディープリンクを生成する。
package messaging

import (
	"net/url"
	"strings"
	"time"
)

// Domain はメッセージ本文に含めるサイト名。
const Domain = "hotel.com.tn"

// CopyAckWindow は番号コピー後に「コピー済み」表示を維持する時間。
const CopyAckWindow = 2 * time.Second

const whatsAppBaseURL = "https://wa.me/"

// DigitsOnly は電話番号から数字以外を取り除く。
func DigitsOnly(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Message は予約IDに言及するフランス語の定型文を返す。
// "%23" はURLデコード後に "#" として表示される。
func Message(bookingID string) string {
	return "Bonjour, nous vous contactons au sujet de votre réservation %23" + bookingID + " sur " + Domain + "."
}

// BuildWhatsAppURL はWhatsAppのclick-to-chat URLを生成する。
func BuildWhatsAppURL(phone, bookingID string) string {
	return whatsAppBaseURL + DigitsOnly(phone) + "?text=" + encodeComponent(Message(bookingID))
}

// ContactSource は連絡先番号の出所を表す。
type ContactSource string

const (
	// SourceGuest は予約時にゲストが入力した番号。
	SourceGuest ContactSource = "guest"
	// SourceAccount は予約したアカウントのプロフィールの番号。
	SourceAccount ContactSource = "account"
	// SourceNone は番号がないことを表す。
	SourceNone ContactSource = ""
)

// Contact は予約の連絡先WhatsApp番号を表す。
type Contact struct {
	Number string
	Source ContactSource
}

// ResolveContact はゲスト番号を優先し、なければアカウントの番号を使う。
func ResolveContact(guestNumber, accountNumber string) Contact {
	if n := strings.TrimSpace(guestNumber); n != "" {
		return Contact{Number: n, Source: SourceGuest}
	}
	if n := strings.TrimSpace(accountNumber); n != "" {
		return Contact{Number: n, Source: SourceAccount}
	}
	return Contact{}
}

// Available は連絡可能な番号があるかを返す。
func (c Contact) Available() bool {
	return DigitsOnly(c.Number) != ""
}

// WhatsAppURL は連絡先へのclick-to-chat URLを返す。番号がない場合は空文字列。
func (c Contact) WhatsAppURL(bookingID string) string {
	if !c.Available() {
		return ""
	}
	return BuildWhatsAppURL(c.Number, bookingID)
}

// encodeComponent は値をパーセントエンコードする。空白は "%20" にする。
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
