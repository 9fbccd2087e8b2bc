package store

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/hoteladmin/internal/model"
)

// DefaultPageSize は予約一覧の1ページあたりの件数（デフォルト）。
const DefaultPageSize = 10

// BuildBookingQuery は絞り込み条件とページ番号からbookingsテーブル向けのクエリ文字列を構築する。
//
// 構築順序:
//  1. statusが "all" 以外なら status=eq.<値>
//  2. guestが空白除去後も空でなければ、氏名・メールの大文字小文字を区別しない部分一致をorで結合
//  3. startDateがあれば check_in=gte.<値>
//  4. endDateがあれば check_out=lte.<値>
//  5. 常に order=created_at.desc, limit, offset を付与
//
// 値はすべてパーセントエンコードされる。ページ番号は1からmodel.MaxPageの範囲に収める。
func BuildBookingQuery(filters model.BookingFilters, page, pageSize int) string {
	page = model.ClampPage(page)
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	var params []string
	if filters.Status != "" && filters.Status != model.StatusFilterAll {
		params = append(params, encodeFilter("status", "eq", filters.Status))
	}
	if guest := strings.TrimSpace(filters.Guest); guest != "" {
		pattern := "%" + guest + "%"
		params = append(params, "or=("+
			encodeOrFilter("guest_name", "ilike", pattern)+","+
			encodeOrFilter("guest_email", "ilike", pattern)+")")
	}
	if filters.StartDate != "" {
		params = append(params, encodeFilter("check_in", "gte", filters.StartDate))
	}
	if filters.EndDate != "" {
		params = append(params, encodeFilter("check_out", "lte", filters.EndDate))
	}

	params = append(params,
		"order=created_at.desc",
		"limit="+strconv.Itoa(pageSize),
		"offset="+strconv.Itoa((page-1)*pageSize),
	)
	return strings.Join(params, "&")
}

// ParseTotal はContent-Rangeヘッダー（"0-9/42" 形式）から総件数を取り出す。
// ヘッダーがない、または解析できない場合はfallback（今回返された行数）を返す。
func ParseTotal(contentRange string, fallback int) int {
	_, totalPart, ok := strings.Cut(contentRange, "/")
	if !ok {
		return fallback
	}
	total, err := strconv.Atoi(strings.TrimSpace(totalPart))
	if err != nil || total < 0 {
		return fallback
	}
	return total
}

// encodeFilter は "field=op.value" 形式のフィルタを生成する。
func encodeFilter(field, op, value string) string {
	return field + "=" + op + "." + encodeValue(value)
}

// encodeOrFilter はor句の中で使う "field.op.value" 形式のフィルタを生成する。
func encodeOrFilter(field, op, value string) string {
	return field + "." + op + "." + encodeValue(value)
}

// encodeValue はクエリ値をパーセントエンコードする。空白は "+" ではなく "%20" にする。
func encodeValue(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
