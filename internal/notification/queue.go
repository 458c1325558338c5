package notification

import (
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/resourcehub/pkg/observable"
)

// Timer は予約済みの自動削除。
type Timer interface {
	// Stop は未実行の予約を取り消す。取り消せた場合はtrueを返す。
	Stop() bool
}

// Scheduler はdの経過後にfを呼び出す予約を行う。
type Scheduler func(d time.Duration, f func()) Timer

// realScheduler はtime.AfterFuncで予約する。
func realScheduler(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Queue は自動削除される通知の順序付きキュー。
type Queue struct {
	// items は通知の一覧。スライスは置き換えのみで、要素を直接書き換えない。
	items *observable.Value[[]Notification]
	// mu はtimersとclosedを保護する。
	mu sync.Mutex
	// timers は通知IDごとの自動削除の予約。
	timers map[string]Timer
	// closed はClose済みかどうか。
	closed bool
	// schedule は自動削除の予約に使う。
	schedule Scheduler
	// defaultDuration は表示時間が未指定の通知に使う。
	defaultDuration time.Duration
	// newID は通知IDを採番する。
	newID func() string
	// logger はログ出力先。
	logger *log.Logger
}

// Option はQueueの設定を変更する。
type Option func(*Queue)

// WithScheduler は自動削除の予約方法を差し替える。
func WithScheduler(s Scheduler) Option {
	return func(q *Queue) { q.schedule = s }
}

// WithDefaultDuration は表示時間が未指定の通知に使う時間を設定する。
// 0以下の値は無視される。
func WithDefaultDuration(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.defaultDuration = d
		}
	}
}

// WithLogger はログ出力先を設定する。
func WithLogger(l *log.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// NewQueue は空の通知キューを生成する。
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		items:           observable.New[[]Notification](nil),
		timers:          make(map[string]Timer),
		schedule:        realScheduler,
		defaultDuration: DefaultDuration,
		newID:           uuid.NewString,
		logger:          log.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add は通知に一意のIDを採番して末尾に追加し、自動削除を予約する。
// 引数のIDは無視される。Close後の呼び出しは何もせず空文字列を返す。
// 購読者への通知中はロックを保持しないため、購読者から他のメソッドを呼んでもよい。
func (q *Queue) Add(n Notification) string {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ""
	}

	n.ID = q.newID()
	if !n.Type.Valid() {
		q.logger.Printf("[Notification] 未知の通知種別 %q をinfoとして扱います", n.Type)
		n.Type = TypeInfo
	}
	if n.Duration <= 0 {
		n.Duration = q.defaultDuration
	}

	q.items.Update(func(current []Notification) ([]Notification, bool) {
		next := make([]Notification, 0, len(current)+1)
		next = append(next, current...)
		return append(next, n), true
	})

	id := n.ID
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.timers[id] = q.schedule(n.Duration, func() { q.expire(id) })
	}
	return id
}

// Remove は指定IDの通知を削除し、自動削除の予約を取り消す。
// 存在しないIDの場合は何もしない。
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.removeItem(id)
}

// Clear は全ての通知を削除する。自動削除の予約は取り消さない。
func (q *Queue) Clear() {
	q.items.Update(func(current []Notification) ([]Notification, bool) {
		return nil, len(current) > 0
	})
}

// List は現在の通知の一覧を追加順で返す。
func (q *Queue) List() []Notification {
	return slices.Clone(q.items.Get())
}

// Len は現在の通知の件数を返す。
func (q *Queue) Len() int {
	return len(q.items.Get())
}

// Subscribe はfnを登録し、直ちに現在の一覧で呼び出す。
// fnに渡されるスライスは読み取り専用として扱うこと。
func (q *Queue) Subscribe(fn func([]Notification)) observable.ID {
	return q.items.Subscribe(fn)
}

// Unsubscribe は購読を解除する。
func (q *Queue) Unsubscribe(id observable.ID) bool {
	return q.items.Unsubscribe(id)
}

// Close は未実行の自動削除を全て取り消す。キューに残った通知はそのまま残る。
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

// expire は自動削除の予約から呼ばれる。既に削除済みであれば何もしない。
func (q *Queue) expire(id string) {
	q.mu.Lock()
	delete(q.timers, id)
	q.mu.Unlock()

	q.removeItem(id)
}

// removeItem は一覧から指定IDの通知を取り除く。
func (q *Queue) removeItem(id string) {
	q.items.Update(func(current []Notification) ([]Notification, bool) {
		i := slices.IndexFunc(current, func(n Notification) bool { return n.ID == id })
		if i < 0 {
			return current, false
		}
		next := make([]Notification, 0, len(current)-1)
		next = append(next, current[:i]...)
		return append(next, current[i+1:]...), true
	})
}
