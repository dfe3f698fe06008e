package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// ErrSessionClosed 会话已停止，不再接收事件
var ErrSessionClosed = errors.New("session closed")

type job struct {
	ev Event
	fx Effects
}

// Session 一个宿主服务器的全部运行状态：放置索引、重生跟踪、区块存储与规则。
// 事件经 OnEvent 同步分发；通过 Submit 投递的事件由单个事件循环顺序处理。
type Session struct {
	ID string

	index     *PlacementIndex
	respawns  *RespawnTracker
	store     *ChunkStore
	evaluator *TickEvaluator
	metrics   *SessionMetrics

	rulesMu deadlock.RWMutex
	rules   Rules

	now func() time.Time

	events  chan job
	quit    chan struct{}
	done    chan struct{}
	started bool
}

// NewSession root 为该服务器的存档根目录
func NewSession(id, root string, rules Rules, queue int) *Session {
	if queue <= 0 {
		queue = 1024
	}
	index := NewPlacementIndex()
	respawns := NewRespawnTracker(rules.GracePeriod)
	return &Session{
		ID:        id,
		index:     index,
		respawns:  respawns,
		store:     NewChunkStore(root),
		evaluator: NewTickEvaluator(index, respawns),
		metrics:   &SessionMetrics{},
		rules:     rules,
		now:       time.Now,
		events:    make(chan job, queue),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Session) Index() *PlacementIndex    { return s.index }
func (s *Session) Respawns() *RespawnTracker { return s.respawns }
func (s *Session) Store() *ChunkStore        { return s.store }
func (s *Session) Metrics() *SessionMetrics  { return s.metrics }

// SetClock 替换时间源（测试用）
func (s *Session) SetClock(now func() time.Time) { s.now = now }

// Rules 当前规则副本
func (s *Session) Rules() Rules {
	s.rulesMu.RLock()
	defer s.rulesMu.RUnlock()
	return s.rules
}

// SetRules 热更新规则
func (s *Session) SetRules(r Rules) {
	s.rulesMu.Lock()
	s.rules = r
	s.rulesMu.Unlock()
	s.respawns.SetGrace(r.GracePeriod)
}

// OnEvent 同步处理一个宿主事件。存储错误只记录日志，不向上传播。
func (s *Session) OnEvent(ev Event, fx Effects) error {
	if fx == nil {
		fx = discardEffects{}
	}
	switch e := ev.(type) {
	case PlayerJoin:
		s.onRespawnOrJoin(e.Player, fx)
	case PlayerRespawn:
		s.onRespawnOrJoin(e.Player, fx)
	case PlayerLeave:
		s.respawns.Forget(e.Player)
	case BlockPlaced:
		s.index.Add(e.World, e.Pos)
		s.metrics.IncPlacements()
		Log.Infof("placed block at %v in chunk %v of %s", e.Pos, ChunkOf(e.Pos), e.World)
	case BlockBroken:
		if s.Rules().ForgetBroken && s.index.Remove(e.World, e.Pos) {
			Log.Debugf("forgot broken block at %v in %s", e.Pos, e.World)
		}
	case ChunkLoad:
		s.onChunkLoad(e.World, e.Chunk)
	case ChunkUnload:
		s.onChunkUnload(e.World, e.Chunk)
	case ServerTick:
		start := time.Now()
		rep := s.evaluator.Run(s.now().UnixMilli(), e.Worlds, s.Rules(), fx)
		s.metrics.AddTick(time.Since(start).Nanoseconds(), rep)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return nil
}

func (s *Session) onRespawnOrJoin(id PlayerID, fx Effects) {
	s.respawns.OnRespawnOrJoin(id, s.now().UnixMilli())
	s.metrics.IncJoins()
	fx.SendMessage(id, WarnMessage)
}

// onChunkLoad 读取磁盘集合；与内存中已有的记录合并，避免重复投递的加载事件覆盖未落盘的放置
func (s *Session) onChunkLoad(world WorldID, chunk ChunkPos) {
	set, err := s.store.Read(world, chunk)
	if err != nil {
		s.recordStorageError(err)
		Log.Errorf("failed to load chunk data for %v in %s: %v", chunk, world, err)
		return
	}
	for p := range s.index.PlacedSet(world, chunk) {
		set.Add(p)
	}
	if len(set) == 0 {
		return
	}
	s.index.Load(world, chunk, set)
	s.metrics.IncChunksLoaded()
	Log.Infof("loaded placed block data from chunk %v in %s (%d blocks)", chunk, world, len(set))
}

// onChunkUnload 取出并落盘；集合被清空时删除旧文件
func (s *Session) onChunkUnload(world WorldID, chunk ChunkPos) {
	set, tracked := s.index.TakeAndClear(world, chunk)
	if !tracked {
		return
	}
	s.persist(world, chunk, set)
}

func (s *Session) persist(world WorldID, chunk ChunkPos, set PosSet) {
	if len(set) == 0 {
		if err := s.store.Remove(world, chunk); err != nil {
			s.recordStorageError(err)
			Log.Errorf("failed to remove chunk data for %v in %s: %v", chunk, world, err)
			return
		}
		s.metrics.IncChunksRemoved()
		return
	}
	if err := s.store.Write(world, chunk, set); err != nil {
		s.recordStorageError(err)
		Log.Errorf("failed to save chunk data for %v in %s: %v", chunk, world, err)
		return
	}
	s.metrics.IncChunksSaved()
	Log.Infof("saved placed block data for chunk %v in %s (%d blocks)", chunk, world, len(set))
}

func (s *Session) recordStorageError(err error) {
	if errors.Is(err, ErrDecode) {
		s.metrics.IncDecodeErrors()
		return
	}
	s.metrics.IncStorageErrors()
}

// Flush 把仍在内存中的区块全部落盘（不清除），用于停机
func (s *Session) Flush() {
	for _, tc := range s.index.Chunks() {
		s.persist(tc.World, tc.Chunk, s.index.PlacedSet(tc.World, tc.Chunk))
	}
}

// Submit 投递事件到事件循环。Tick 在队列满时直接丢弃以保证实时性，
// 其余事件阻塞等待，保证区块数据不丢。
func (s *Session) Submit(ev Event, fx Effects) error {
	select {
	case <-s.quit:
		return ErrSessionClosed
	default:
	}
	j := job{ev: ev, fx: fx}
	if _, ok := ev.(ServerTick); ok {
		select {
		case s.events <- j:
		default:
			s.metrics.IncTicksDropped()
		}
		return nil
	}
	select {
	case s.events <- j:
		return nil
	case <-s.quit:
		return ErrSessionClosed
	}
}

// Start 启动事件循环（单线程处理全部事件）
func (s *Session) Start() {
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case j := <-s.events:
			s.dispatch(j)
		case <-s.quit:
			// 停止前处理完已入队的事件
			for {
				select {
				case j := <-s.events:
					s.dispatch(j)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) dispatch(j job) {
	defer func() {
		if r := recover(); r != nil {
			Log.Errorf("session %s: panic handling %T: %v", s.ID, j.ev, r)
		}
	}()
	if err := s.OnEvent(j.ev, j.fx); err != nil {
		Log.Warnf("session %s: %v", s.ID, err)
	}
}

// Stop 停止事件循环并落盘全部区块
func (s *Session) Stop() {
	select {
	case <-s.quit:
		return
	default:
	}
	close(s.quit)
	if s.started {
		<-s.done
	} else {
		for len(s.events) > 0 {
			s.dispatch(<-s.events)
		}
	}
	s.Flush()
}
