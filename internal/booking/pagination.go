package booking

import "github.com/hitoshi/hoteladmin/internal/model"

// Pagination はページ送りの状態を表す。
type Pagination struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// NewPagination は総件数・ページ番号・ページサイズからPaginationを生成する。
// 総ページ数は最低1。ページ番号は1からmodel.MaxPageの範囲に収める。
func NewPagination(total, page, pageSize int) Pagination {
	if pageSize < 1 {
		pageSize = 1
	}
	page = model.ClampPage(page)
	if total < 0 {
		total = 0
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

// HasPrev は前のページがあるかを返す。
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext は次のページがあるかを返す。
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// PrevPage は前のページ番号を返す。
func (p Pagination) PrevPage() int { return p.Page - 1 }

// NextPage は次のページ番号を返す。
func (p Pagination) NextPage() int { return p.Page + 1 }
