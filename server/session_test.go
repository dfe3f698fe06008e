package server

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 手动推进的时间源
type fakeClock struct{ ms atomic.Int64 }

func (c *fakeClock) Now() time.Time { return time.UnixMilli(c.ms.Load()) }
func (c *fakeClock) Set(ms int64)   { c.ms.Store(ms) }

func newTestSession(t *testing.T) (*Session, *fakeClock, string) {
	t.Helper()
	root := t.TempDir()
	s := NewSession("test", root, DefaultRules(), 16)
	clk := &fakeClock{}
	s.SetClock(clk.Now)
	return s, clk, root
}

func TestSessionPlaceUnloadReload(t *testing.T) {
	s, _, root := newTestSession(t)
	fx := &recorder{}
	p := BlockPos{10, 64, 10}

	require.NoError(t, s.OnEvent(BlockPlaced{World: overworld, Pos: p}, fx))
	assert.True(t, s.Index().PlacedSet(overworld, ChunkPos{0, 0}).Has(p))

	require.NoError(t, s.OnEvent(ChunkUnload{World: overworld, Chunk: ChunkPos{0, 0}}, fx))
	assert.Empty(t, s.Index().PlacedSet(overworld, ChunkPos{0, 0}))
	assert.FileExists(t, filepath.Join(root, "placed_blocks", "overworld", "chunk_0_0.dat"))

	require.NoError(t, s.OnEvent(ChunkLoad{World: overworld, Chunk: ChunkPos{0, 0}}, fx))
	assert.True(t, s.Index().PlacedSet(overworld, ChunkPos{0, 0}).Has(p))

	snap := s.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap["placements"])
	assert.EqualValues(t, 1, snap["chunks_saved"])
	assert.EqualValues(t, 1, snap["chunks_loaded"])
}

func TestSessionUnloadUntrackedWritesNothing(t *testing.T) {
	s, _, root := newTestSession(t)
	require.NoError(t, s.OnEvent(ChunkUnload{World: overworld, Chunk: ChunkPos{4, 4}}, nil))
	require.NoError(t, s.OnEvent(ChunkLoad{World: overworld, Chunk: ChunkPos{4, 4}}, nil))

	_, err := os.Stat(filepath.Join(root, "placed_blocks"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, s.Index().Chunks())
}

func TestSessionDuplicateLoadKeepsUnsavedPlacements(t *testing.T) {
	s, _, _ := newTestSession(t)
	a, b := BlockPos{1, 64, 1}, BlockPos{2, 64, 2}

	require.NoError(t, s.OnEvent(BlockPlaced{World: overworld, Pos: a}, nil))
	require.NoError(t, s.OnEvent(ChunkUnload{World: overworld, Chunk: ChunkPos{0, 0}}, nil))
	require.NoError(t, s.OnEvent(ChunkLoad{World: overworld, Chunk: ChunkPos{0, 0}}, nil))
	require.NoError(t, s.OnEvent(BlockPlaced{World: overworld, Pos: b}, nil))
	require.NoError(t, s.OnEvent(ChunkLoad{World: overworld, Chunk: ChunkPos{0, 0}}, nil))

	assert.Equal(t, NewPosSet(a, b), s.Index().PlacedSet(overworld, ChunkPos{0, 0}))
}

func TestSessionCorruptChunkIsLoggedNotFatal(t *testing.T) {
	s, _, root := newTestSession(t)
	dir := filepath.Join(root, "placed_blocks", "overworld")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunk_0_0.dat"), []byte{0xde, 0xad}, 0o644))

	require.NoError(t, s.OnEvent(ChunkLoad{World: overworld, Chunk: ChunkPos{0, 0}}, nil))
	assert.Empty(t, s.Index().PlacedSet(overworld, ChunkPos{0, 0}))
	assert.EqualValues(t, 1, s.Metrics().Snapshot()["decode_errors"])
}

func TestSessionWriteFailureIsLoggedNotFatal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(root, nil, 0o644))
	s := NewSession("test", root, DefaultRules(), 1)

	require.NoError(t, s.OnEvent(BlockPlaced{World: overworld, Pos: BlockPos{1, 1, 1}}, nil))
	require.NoError(t, s.OnEvent(ChunkUnload{World: overworld, Chunk: ChunkPos{0, 0}}, nil))
	assert.EqualValues(t, 1, s.Metrics().Snapshot()["storage_errors"])
	assert.Empty(t, s.Index().Chunks(), "unloaded data is dropped from memory")
}

func TestSessionJoinGraceScenario(t *testing.T) {
	s, clk, _ := newTestSession(t)
	fx := &recorder{}
	id := uuid.New()
	tick := ServerTick{Worlds: []WorldView{standingOn(id, BlockPos{3, 63, 3}, "minecraft:stone")}}

	clk.Set(0)
	require.NoError(t, s.OnEvent(PlayerJoin{Player: id}, fx))
	assert.Equal(t, []sentMessage{{id, WarnMessage}}, fx.Messages())
	fx.Reset()

	clk.Set(3000)
	require.NoError(t, s.OnEvent(tick, fx))
	assert.Empty(t, fx.Messages())
	assert.Empty(t, fx.Damages())

	clk.Set(5000)
	require.NoError(t, s.OnEvent(tick, fx))
	assert.Equal(t, []sentMessage{{id, AfflictedMessage}}, fx.Messages())
	fx.Reset()

	clk.Set(6000)
	require.NoError(t, s.OnEvent(tick, fx))
	assert.Empty(t, fx.Messages())
	assert.Len(t, fx.Damages(), 1)

	clk.Set(7000)
	require.NoError(t, s.OnEvent(PlayerRespawn{Player: id}, fx))
	fx.Reset()
	clk.Set(8000)
	require.NoError(t, s.OnEvent(tick, fx))
	assert.Empty(t, fx.Damages(), "respawn restarts the grace period")
}

func TestSessionBrokenBlocksKeptByDefault(t *testing.T) {
	s, _, _ := newTestSession(t)
	p := BlockPos{1, 64, 1}
	require.NoError(t, s.OnEvent(BlockPlaced{World: overworld, Pos: p}, nil))
	require.NoError(t, s.OnEvent(BlockBroken{World: overworld, Pos: p}, nil))
	assert.True(t, s.Index().Contains(overworld, p))
}

func TestSessionForgetBrokenRemovesStaleFile(t *testing.T) {
	s, _, root := newTestSession(t)
	rules := s.Rules()
	rules.ForgetBroken = true
	s.SetRules(rules)

	p := BlockPos{1, 64, 1}
	file := filepath.Join(root, "placed_blocks", "overworld", "chunk_0_0.dat")
	require.NoError(t, s.OnEvent(BlockPlaced{World: overworld, Pos: p}, nil))
	require.NoError(t, s.OnEvent(ChunkUnload{World: overworld, Chunk: ChunkPos{0, 0}}, nil))
	require.FileExists(t, file)

	require.NoError(t, s.OnEvent(ChunkLoad{World: overworld, Chunk: ChunkPos{0, 0}}, nil))
	require.NoError(t, s.OnEvent(BlockBroken{World: overworld, Pos: p}, nil))
	assert.False(t, s.Index().Contains(overworld, p))

	require.NoError(t, s.OnEvent(ChunkUnload{World: overworld, Chunk: ChunkPos{0, 0}}, nil))
	assert.NoFileExists(t, file)
}

func TestSessionLeaveForgetsPlayer(t *testing.T) {
	s, _, _ := newTestSession(t)
	id := uuid.New()
	require.NoError(t, s.OnEvent(PlayerJoin{Player: id}, nil))
	require.NoError(t, s.OnEvent(PlayerLeave{Player: id}, nil))
	assert.Zero(t, s.Respawns().Len())
}

type bogusEvent struct{}

func (bogusEvent) Kind() EventKind { return 0 }

func TestSessionUnknownEvent(t *testing.T) {
	s, _, _ := newTestSession(t)
	err := s.OnEvent(bogusEvent{}, nil)
	assert.True(t, errors.Is(err, ErrUnknownEvent))
	assert.Equal(t, "EventKind(0)", bogusEvent{}.Kind().String())
	assert.Equal(t, "chunk_unload", EventChunkUnload.String())
}

func TestSessionLoopAndStopFlushes(t *testing.T) {
	s, _, root := newTestSession(t)
	s.Start()
	s.Start()

	p := BlockPos{-20, 70, 5}
	require.NoError(t, s.Submit(BlockPlaced{World: "minecraft:the_nether", Pos: p}, nil))
	require.NoError(t, s.Submit(ServerTick{}, nil))
	s.Stop()
	s.Stop()

	assert.FileExists(t, filepath.Join(root, "placed_blocks", "the_nether", "chunk_-2_0.dat"))
	assert.EqualValues(t, 1, s.Metrics().Snapshot()["tick_count"])
	assert.ErrorIs(t, s.Submit(BlockPlaced{World: overworld, Pos: p}, nil), ErrSessionClosed)
	assert.ErrorIs(t, s.Submit(ServerTick{}, nil), ErrSessionClosed)
}

func TestSessionDropsTicksWhenQueueFull(t *testing.T) {
	s := NewSession("test", t.TempDir(), DefaultRules(), 1)
	// 未启动事件循环，队列只能容纳一个事件
	require.NoError(t, s.Submit(ServerTick{}, nil))
	require.NoError(t, s.Submit(ServerTick{}, nil))
	assert.EqualValues(t, 1, s.Metrics().Snapshot()["ticks_dropped"])
}

func TestSessionSetRulesUpdatesGrace(t *testing.T) {
	s, _, _ := newTestSession(t)
	r := s.Rules()
	r.GracePeriod = 2 * time.Second
	s.SetRules(r)
	assert.Equal(t, 2*time.Second, s.Respawns().Grace())
}
