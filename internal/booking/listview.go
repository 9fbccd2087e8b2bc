package booking

import (
	"context"
	"sync"

	"github.com/hitoshi/hoteladmin/internal/model"
)

// Loader は指定条件の予約一覧を読み込む関数。
type Loader func(ctx context.Context, token string, filters model.BookingFilters, page int) (*ListResult, error)

// ListState はListViewに反映済みの状態。
type ListState struct {
	Filters    model.BookingFilters
	Page       int
	Result     *ListResult
	Err        error
	Loading    bool
	Generation uint64
}

// PageUnset はページ番号が指定されていないことを表す。
const PageUnset = 0

// ListView は閲覧者ごとの予約一覧の状態を保持する。
// ページ指定なしで絞り込み条件が変わるとページを1に戻し、読み込みごとに世代番号を進める。
// 完了した読み込みの世代が最新でない場合やClose後の場合、その結果は状態に反映しない。
type ListView struct {
	load Loader

	mu      sync.Mutex
	filters model.BookingFilters
	page    int
	gen     uint64
	closed  bool
	state   ListState
}

// NewListView はListViewを生成する。初期状態は条件なしの1ページ目。
func NewListView(load Loader) *ListView {
	initial := model.BookingFilters{Status: model.StatusFilterAll}
	return &ListView{
		load:    load,
		filters: initial,
		page:    1,
		state:   ListState{Filters: initial, Page: 1},
	}
}

// Update は条件とページを適用して一覧を読み込む。
// pageが指定されていればそのページを読み込む。PageUnsetの場合、絞り込み条件が
// 前回から変わっていれば1ページ目、変わっていなければ現在のページを読み込む。
// 戻り値のcurrentがfalseの場合、より新しい読み込みが開始されていたため結果は状態に反映されていない。
func (v *ListView) Update(ctx context.Context, token string, filters model.BookingFilters, page int) (state ListState, current bool) {
	v.mu.Lock()
	if v.closed {
		st := v.state
		v.mu.Unlock()
		return st, false
	}
	switch {
	case page >= 1:
	case filters != v.filters:
		page = 1
	default:
		page = v.page
	}
	page = model.ClampPage(page)
	v.filters = filters
	v.page = page
	v.gen++
	gen := v.gen
	v.state.Loading = true
	v.mu.Unlock()

	res, err := v.load(ctx, token, filters, page)

	loaded := ListState{
		Filters:    filters,
		Page:       page,
		Result:     res,
		Err:        err,
		Generation: gen,
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || gen != v.gen {
		return loaded, false
	}
	v.state = loaded
	return loaded, true
}

// State は最後に反映された状態を返す。
func (v *ListView) State() ListState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Close は以後の読み込み結果を破棄する。
func (v *ListView) Close() {
	v.mu.Lock()
	v.closed = true
	v.state.Loading = false
	v.mu.Unlock()
}
