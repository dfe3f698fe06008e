package server

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// DefaultGracePeriod 加入/重生后的保护期
const DefaultGracePeriod = 5 * time.Second

// RespawnTracker 记录玩家最近一次加入/重生的时间戳与待发送通知
//
// 状态：未见过 → (加入/重生) 保护期 → (到期且有待通知) 发送一次通知 → 正常检测。
// 任意状态再次加入/重生都会重新开始。
type RespawnTracker struct {
	mu      deadlock.Mutex
	grace   int64 // ms
	last    map[PlayerID]int64
	pending map[PlayerID]struct{}
}

// NewRespawnTracker grace <= 0 时使用默认 5 秒
func NewRespawnTracker(grace time.Duration) *RespawnTracker {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &RespawnTracker{
		grace:   grace.Milliseconds(),
		last:    make(map[PlayerID]int64),
		pending: make(map[PlayerID]struct{}),
	}
}

// Grace 当前保护期
func (t *RespawnTracker) Grace() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.grace) * time.Millisecond
}

// SetGrace 热更新保护期，只影响之后的判断
func (t *RespawnTracker) SetGrace(grace time.Duration) {
	if grace <= 0 {
		return
	}
	t.mu.Lock()
	t.grace = grace.Milliseconds()
	t.mu.Unlock()
}

// OnRespawnOrJoin 无条件重置：记录时间戳并置待通知
func (t *RespawnTracker) OnRespawnOrJoin(id PlayerID, nowMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[id] = nowMs
	t.pending[id] = struct{}{}
}

// IsInGrace now - last < grace
func (t *RespawnTracker) IsInGrace(id PlayerID, nowMs int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[id]
	return ok && nowMs-last < t.grace
}

// ShouldNotify 保护期结束且仍待通知时返回 true，并清除待通知（每轮至多一次）
func (t *RespawnTracker) ShouldNotify(id PlayerID, nowMs int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; !ok {
		return false
	}
	last, ok := t.last[id]
	if !ok || nowMs-last < t.grace {
		return false
	}
	delete(t.pending, id)
	return true
}

// Forget 玩家离开时丢弃其状态
func (t *RespawnTracker) Forget(id PlayerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, id)
	delete(t.pending, id)
}

// Len 被跟踪的玩家数
func (t *RespawnTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
