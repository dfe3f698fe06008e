package server

import (
	"errors"
	"fmt"
)

// EventKind 宿主投递的事件类型
type EventKind int

const (
	EventPlayerJoin EventKind = iota + 1
	EventPlayerRespawn
	EventPlayerLeave
	EventBlockPlaced
	EventBlockBroken
	EventChunkLoad
	EventChunkUnload
	EventServerTick
)

var eventKindNames = map[EventKind]string{
	EventPlayerJoin:    "join",
	EventPlayerRespawn: "respawn",
	EventPlayerLeave:   "leave",
	EventBlockPlaced:   "place",
	EventBlockBroken:   "break",
	EventChunkLoad:     "chunk_load",
	EventChunkUnload:   "chunk_unload",
	EventServerTick:    "tick",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ErrUnknownEvent 无法识别的事件
var ErrUnknownEvent = errors.New("unknown event")

// Event 宿主事件；具体载荷见下方各类型
type Event interface {
	Kind() EventKind
}

type PlayerJoin struct{ Player PlayerID }

type PlayerRespawn struct{ Player PlayerID }

// PlayerLeave 玩家断开连接
type PlayerLeave struct{ Player PlayerID }

// BlockPlaced Pos 为实际放下方块的位置（点击面偏移之后）
type BlockPlaced struct {
	World WorldID
	Pos   BlockPos
}

type BlockBroken struct {
	World WorldID
	Pos   BlockPos
}

type ChunkLoad struct {
	World WorldID
	Chunk ChunkPos
}

type ChunkUnload struct {
	World WorldID
	Chunk ChunkPos
}

// ServerTick 每个服务器 Tick 一次，携带各世界的玩家快照
type ServerTick struct {
	Worlds []WorldView
}

func (PlayerJoin) Kind() EventKind    { return EventPlayerJoin }
func (PlayerRespawn) Kind() EventKind { return EventPlayerRespawn }
func (PlayerLeave) Kind() EventKind   { return EventPlayerLeave }
func (BlockPlaced) Kind() EventKind   { return EventBlockPlaced }
func (BlockBroken) Kind() EventKind   { return EventBlockBroken }
func (ChunkLoad) Kind() EventKind     { return EventChunkLoad }
func (ChunkUnload) Kind() EventKind   { return EventChunkUnload }
func (ServerTick) Kind() EventKind    { return EventServerTick }

// ErrBlockUnknown 宿主未提供该位置的方块
var ErrBlockUnknown = errors.New("block unknown")

// WorldView Tick 期间对某个世界的只读视图
type WorldView interface {
	ID() WorldID
	Players() []PlayerView
	BlockAt(pos BlockPos) (BlockType, error)
}

// SnapshotWorld 由宿主一次性上报的世界快照：玩家列表 + 相关方块
type SnapshotWorld struct {
	World  WorldID
	Online []PlayerView
	Blocks map[BlockPos]BlockType
}

func (w *SnapshotWorld) ID() WorldID           { return w.World }
func (w *SnapshotWorld) Players() []PlayerView { return w.Online }

func (w *SnapshotWorld) BlockAt(pos BlockPos) (BlockType, error) {
	b, ok := w.Blocks[pos]
	if !ok {
		return "", fmt.Errorf("%w at %v in %s", ErrBlockUnknown, pos, w.World)
	}
	return b, nil
}
