package server

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics 记录会话运行期的关键指标（用于监控与调试）
type SessionMetrics struct {
	TickCount      int64 // 处理的 Tick 次数
	TicksDropped   int64 // 因队列满被丢弃的 Tick
	TotalTickNs    int64 // Tick 累计耗时（纳秒）
	PlayersChecked int64
	DamageApplied  int64
	Notifications  int64
	TickErrors     int64 // 单个玩家判定失败次数
	Placements     int64
	Joins          int64
	ChunksLoaded   int64 // 从磁盘恢复了非空集合的区块数
	ChunksSaved    int64
	ChunksRemoved  int64
	StorageErrors  int64
	DecodeErrors   int64
}

func (m *SessionMetrics) IncTicksDropped()  { atomic.AddInt64(&m.TicksDropped, 1) }
func (m *SessionMetrics) IncPlacements()    { atomic.AddInt64(&m.Placements, 1) }
func (m *SessionMetrics) IncJoins()         { atomic.AddInt64(&m.Joins, 1) }
func (m *SessionMetrics) IncChunksLoaded()  { atomic.AddInt64(&m.ChunksLoaded, 1) }
func (m *SessionMetrics) IncChunksSaved()   { atomic.AddInt64(&m.ChunksSaved, 1) }
func (m *SessionMetrics) IncChunksRemoved() { atomic.AddInt64(&m.ChunksRemoved, 1) }
func (m *SessionMetrics) IncStorageErrors() { atomic.AddInt64(&m.StorageErrors, 1) }
func (m *SessionMetrics) IncDecodeErrors()  { atomic.AddInt64(&m.DecodeErrors, 1) }

// AddTick 累加一次 Tick 的耗时与结果
func (m *SessionMetrics) AddTick(ns int64, rep TickReport) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	atomic.AddInt64(&m.PlayersChecked, int64(rep.Evaluated))
	atomic.AddInt64(&m.DamageApplied, int64(rep.Damaged))
	atomic.AddInt64(&m.Notifications, int64(rep.Notified))
	atomic.AddInt64(&m.TickErrors, int64(rep.Errors))
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *SessionMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":      tick,
		"ticks_dropped":   atomic.LoadInt64(&m.TicksDropped),
		"players_checked": atomic.LoadInt64(&m.PlayersChecked),
		"damage_applied":  atomic.LoadInt64(&m.DamageApplied),
		"notifications":   atomic.LoadInt64(&m.Notifications),
		"tick_errors":     atomic.LoadInt64(&m.TickErrors),
		"placements":      atomic.LoadInt64(&m.Placements),
		"joins":           atomic.LoadInt64(&m.Joins),
		"chunks_loaded":   atomic.LoadInt64(&m.ChunksLoaded),
		"chunks_saved":    atomic.LoadInt64(&m.ChunksSaved),
		"chunks_removed":  atomic.LoadInt64(&m.ChunksRemoved),
		"storage_errors":  atomic.LoadInt64(&m.StorageErrors),
		"decode_errors":   atomic.LoadInt64(&m.DecodeErrors),
		"avg_tick_ms":     avgMs,
	}
}

// Collectors 把计数器导出为 Prometheus 指标（按 server 标签区分会话）
func (m *SessionMetrics) Collectors(server string, index *PlacementIndex) []prometheus.Collector {
	labels := prometheus.Labels{"server": server}
	counter := func(name, help string, v *int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "nhg",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(atomic.LoadInt64(v)) })
	}
	return []prometheus.Collector{
		counter("ticks_total", "Server ticks evaluated.", &m.TickCount),
		counter("ticks_dropped_total", "Ticks dropped because the event queue was full.", &m.TicksDropped),
		counter("players_checked_total", "Per-player ground checks performed.", &m.PlayersChecked),
		counter("damage_applied_total", "Lethal damage effects emitted.", &m.DamageApplied),
		counter("notifications_total", "Grace-expired notifications sent.", &m.Notifications),
		counter("tick_errors_total", "Per-player evaluations skipped because of errors.", &m.TickErrors),
		counter("placements_total", "Block placements recorded.", &m.Placements),
		counter("chunks_loaded_total", "Chunks restored from disk with placed blocks.", &m.ChunksLoaded),
		counter("chunks_saved_total", "Chunk files written.", &m.ChunksSaved),
		counter("storage_errors_total", "Chunk file I/O failures.", &m.StorageErrors),
		counter("decode_errors_total", "Corrupt chunk files encountered.", &m.DecodeErrors),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "nhg",
			Name:        "placed_blocks",
			Help:        "Placed block positions currently held in memory.",
			ConstLabels: labels,
		}, func() float64 { return float64(index.Len()) }),
	}
}
