// Package observable は購読可能な値コンテナを提供する。
//
// Valueは現在値を保持し、値の変更を登録順に購読者へ同期的に通知する。
// 通知中はロックを保持しないため、購読者のコールバックから同じValueを
// 更新してもデッドロックしない。コールバック中の更新は待ち行列に積まれ、
// 実行中の通知が終わった後に順番どおり配送される。
package observable

import "sync"

// ID は購読を識別するハンドル。Unsubscribeに渡して購読を解除する。
type ID uint64

// listener は1件の購読。
type listener[T any] struct {
	id     ID
	fn     func(T)
	active bool
}

// delivery は配送待ちの通知。
type delivery[T any] struct {
	to    *listener[T]
	value T
}

// Value は購読可能な値。ゼロ値は使用できないため、Newで生成すること。
type Value[T any] struct {
	mu        sync.Mutex
	value     T
	listeners []*listener[T]
	nextID    ID
	queue     []delivery[T]
	draining  bool
}

// New は初期値を持つValueを生成する。
func New[T any](initial T) *Value[T] {
	return &Value[T]{value: initial}
}

// Get は現在値を返す。
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set は値を置き換え、全購読者に通知する。
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	v.value = value
	v.enqueueLocked(v.listeners, value)
	v.drainLocked()
}

// Update はロックを保持したままfnで新しい値を計算する。
// fnがfalseを返した場合は値を変更せず、通知も行わない。
// fnの中からこのValueのメソッドを呼んではならない。
func (v *Value[T]) Update(fn func(current T) (T, bool)) T {
	v.mu.Lock()
	next, changed := fn(v.value)
	if !changed {
		current := v.value
		v.mu.Unlock()
		return current
	}
	v.value = next
	v.enqueueLocked(v.listeners, next)
	v.drainLocked()
	return next
}

// Subscribe はコールバックを登録し、直ちに現在値で1回呼び出す。
// 以降は値が変わるたびに登録順で呼び出される。
func (v *Value[T]) Subscribe(fn func(T)) ID {
	v.mu.Lock()
	v.nextID++
	l := &listener[T]{id: v.nextID, fn: fn, active: true}
	v.listeners = append(v.listeners, l)
	v.enqueueLocked([]*listener[T]{l}, v.value)
	v.drainLocked()
	return l.id
}

// Unsubscribe は購読を解除する。解除済みまたは未知のIDの場合はfalseを返す。
// 解除後は配送待ちの通知も届かない。
func (v *Value[T]) Unsubscribe(id ID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, l := range v.listeners {
		if l.id == id {
			l.active = false
			v.listeners = append(v.listeners[:i:i], v.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len は現在の購読者数を返す。
func (v *Value[T]) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.listeners)
}

// enqueueLocked は指定購読者への通知を待ち行列に積む。v.muを保持して呼ぶこと。
func (v *Value[T]) enqueueLocked(targets []*listener[T], value T) {
	for _, l := range targets {
		v.queue = append(v.queue, delivery[T]{to: l, value: value})
	}
}

// drainLocked は待ち行列を空になるまで配送する。v.muを保持して呼び、解放して戻る。
// 別の呼び出しが配送中であれば、積んだ通知はそちらが配送する。
func (v *Value[T]) drainLocked() {
	if v.draining {
		v.mu.Unlock()
		return
	}
	v.draining = true
	for len(v.queue) > 0 {
		d := v.queue[0]
		v.queue[0] = delivery[T]{}
		v.queue = v.queue[1:]
		if !d.to.active {
			continue
		}
		v.mu.Unlock()
		v.deliver(d)
		v.mu.Lock()
	}
	v.queue = nil
	v.draining = false
	v.mu.Unlock()
}

// deliver はロックを保持せずに1件の通知を配送する。
// コールバックがパニックした場合は配送状態を戻してから再パニックする。
func (v *Value[T]) deliver(d delivery[T]) {
	defer func() {
		if r := recover(); r != nil {
			v.mu.Lock()
			v.queue = nil
			v.draining = false
			v.mu.Unlock()
			panic(r)
		}
	}()
	d.to.fn(d.value)
}
