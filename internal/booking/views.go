package booking

import (
	"sync"
	"time"

	"github.com/hitoshi/hoteladmin/internal/session"
)

// DefaultMaxViews は保持するListViewの既定の上限数。
const DefaultMaxViews = 1000

type viewEntry struct {
	view     *ListView
	lastUsed time.Time
}

// Views はセッションごとのListViewを保持する。
// ログアウトしたセッションのListViewは破棄され、上限を超えた場合は最も古く使われたものから破棄する。
type Views struct {
	load Loader
	max  int
	now  func() time.Time

	mu    sync.Mutex
	views map[string]*viewEntry
}

// NewViews はViewsを生成する。maxが0以下の場合は既定値を使う。
func NewViews(load Loader, max int) *Views {
	if max < 1 {
		max = DefaultMaxViews
	}
	return &Views{
		load:  load,
		max:   max,
		now:   time.Now,
		views: make(map[string]*viewEntry),
	}
}

// Get はセッションのListViewを返す。存在しない場合は作成する。
func (r *Views) Get(sessionID string) *ListView {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.views[sessionID]; ok {
		e.lastUsed = r.now()
		return e.view
	}

	if len(r.views) >= r.max {
		r.evictOldest()
	}
	v := NewListView(r.load)
	r.views[sessionID] = &viewEntry{view: v, lastUsed: r.now()}
	return v
}

// Release はセッションのListViewを閉じて破棄する。
func (r *Views) Release(sessionID string) {
	r.mu.Lock()
	e, ok := r.views[sessionID]
	delete(r.views, sessionID)
	r.mu.Unlock()

	if ok {
		e.view.Close()
	}
}

// Len は保持しているListViewの数を返す。
func (r *Views) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// HandleSessionEvent はセッションストアの通知を受け取り、ログアウトしたセッションのListViewを破棄する。
func (r *Views) HandleSessionEvent(ev session.Event) {
	if ev.Kind == session.SignedOut && ev.Session != nil {
		r.Release(ev.Session.ID)
	}
}

func (r *Views) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, e := range r.views {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	if e, ok := r.views[oldestID]; ok {
		e.view.Close()
		delete(r.views, oldestID)
	}
}
