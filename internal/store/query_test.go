package store

import (
	"strconv"
	"strings"
	"testing"

	"github.com/hitoshi/hoteladmin/internal/model"
)

func TestBuildBookingQuery_NoFilters(t *testing.T) {
	got := BuildBookingQuery(model.BookingFilters{Status: "all"}, 1, 10)
	want := "order=created_at.desc&limit=10&offset=0"
	if got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestBuildBookingQuery_AllFilters(t *testing.T) {
	filters := model.BookingFilters{
		Status:    "confirmed",
		Guest:     "  Jean Dupont ",
		StartDate: "2026-07-01",
		EndDate:   "2026-07-31",
	}

	got := BuildBookingQuery(filters, 3, 10)
	want := "status=eq.confirmed" +
		"&or=(guest_name.ilike.%25Jean%20Dupont%25,guest_email.ilike.%25Jean%20Dupont%25)" +
		"&check_in=gte.2026-07-01" +
		"&check_out=lte.2026-07-31" +
		"&order=created_at.desc&limit=10&offset=20"
	if got != want {
		t.Errorf("query =\n  %q\nwant\n  %q", got, want)
	}
}

func TestBuildBookingQuery_ClausesMatchPresentFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters model.BookingFilters
		want    []string
	}{
		{"statusのみ", model.BookingFilters{Status: "pending"}, []string{"status=eq.pending"}},
		{"空白のみのguestは無視", model.BookingFilters{Guest: "   "}, nil},
		{"guestのみ", model.BookingFilters{Guest: "ana"}, []string{"or=(guest_name.ilike.%25ana%25,guest_email.ilike.%25ana%25)"}},
		{"開始日のみ", model.BookingFilters{StartDate: "2026-01-02"}, []string{"check_in=gte.2026-01-02"}},
		{"終了日のみ", model.BookingFilters{EndDate: "2026-01-09"}, []string{"check_out=lte.2026-01-09"}},
	}

	tail := []string{"order=created_at.desc", "limit=10", "offset=0"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Split(BuildBookingQuery(tt.filters, 1, 10), "&")
			want := append(append([]string{}, tt.want...), tail...)
			if len(got) != len(want) {
				t.Fatalf("clauses = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("clause[%d] = %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestBuildBookingQuery_EncodesReservedCharacters(t *testing.T) {
	got := BuildBookingQuery(model.BookingFilters{Guest: "a&b=c+d@x.com"}, 1, 10)
	if !strings.Contains(got, "a%26b%3Dc%2Bd%40x.com") {
		t.Errorf("guest value should be percent-encoded, got %q", got)
	}
	if strings.Count(got, "&") != 3 {
		t.Errorf("encoded value must not introduce extra clauses, got %q", got)
	}
}

func TestBuildBookingQuery_PageBelowOneIsClamped(t *testing.T) {
	got := BuildBookingQuery(model.BookingFilters{}, 0, 25)
	if !strings.HasSuffix(got, "limit=25&offset=0") {
		t.Errorf("query = %q, want suffix limit=25&offset=0", got)
	}
}

func TestBuildBookingQuery_GuestWithAngleBrackets(t *testing.T) {
	got := BuildBookingQuery(model.BookingFilters{Guest: "<jean>"}, 1, 10)
	want := "or=(guest_name.ilike.%25%3Cjean%3E%25,guest_email.ilike.%25%3Cjean%3E%25)&order=created_at.desc&limit=10&offset=0"
	if got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestBuildBookingQuery_HugePageIsClamped(t *testing.T) {
	got := BuildBookingQuery(model.BookingFilters{}, int(^uint(0)>>1), 10)
	want := "offset=" + strconv.Itoa((model.MaxPage-1)*10)
	if !strings.HasSuffix(got, want) {
		t.Errorf("query = %q, want suffix %q", got, want)
	}
}

func TestParseTotal(t *testing.T) {
	tests := []struct {
		header   string
		fallback int
		want     int
	}{
		{"0-9/42", 10, 42},
		{"*/0", 0, 0},
		{"", 7, 7},
		{"0-6/*", 7, 7},
		{"garbage", 3, 3},
		{"0-9/-1", 10, 10},
	}

	for _, tt := range tests {
		if got := ParseTotal(tt.header, tt.fallback); got != tt.want {
			t.Errorf("ParseTotal(%q, %d) = %d, want %d", tt.header, tt.fallback, got, tt.want)
		}
	}
}

func TestParseTotal_Idempotent(t *testing.T) {
	first := ParseTotal("0-9/42", 10)
	second := ParseTotal("0-9/42", 10)
	if first != second {
		t.Errorf("ParseTotal is not idempotent: %d != %d", first, second)
	}
}
