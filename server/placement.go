package server

import (
	"sort"

	"github.com/sasha-s/go-deadlock"
)

// PlacementIndex 记录每个世界、每个区块内由玩家放置的方块坐标
// 正常情况下只由事件循环修改；锁用于管理接口的并发读取
type PlacementIndex struct {
	mu     deadlock.RWMutex
	worlds map[WorldID]map[ChunkPos]PosSet
}

// NewPlacementIndex 创建空索引
func NewPlacementIndex() *PlacementIndex {
	return &PlacementIndex{worlds: make(map[WorldID]map[ChunkPos]PosSet)}
}

// Add 记录一次放置（重复添加无副作用）
func (ix *PlacementIndex) Add(world WorldID, pos BlockPos) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	chunks, ok := ix.worlds[world]
	if !ok {
		chunks = make(map[ChunkPos]PosSet)
		ix.worlds[world] = chunks
	}
	c := ChunkOf(pos)
	set, ok := chunks[c]
	if !ok {
		set = make(PosSet)
		chunks[c] = set
	}
	set.Add(pos)
}

// Remove 删除一个坐标；区块集合即使变空也保留，卸载时据此删除旧文件
func (ix *PlacementIndex) Remove(world WorldID, pos BlockPos) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	set, ok := ix.worlds[world][ChunkOf(pos)]
	if !ok || !set.Has(pos) {
		return false
	}
	delete(set, pos)
	return true
}

// Contains 坐标是否被记录为玩家放置
func (ix *PlacementIndex) Contains(world WorldID, pos BlockPos) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.worlds[world][ChunkOf(pos)].Has(pos)
}

// PlacedSet 返回区块集合的副本，未跟踪时返回空集合
func (ix *PlacementIndex) PlacedSet(world WorldID, chunk ChunkPos) PosSet {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	set, ok := ix.worlds[world][chunk]
	if !ok {
		return PosSet{}
	}
	return set.Clone()
}

// Load 用磁盘读取的集合替换区块当前集合
func (ix *PlacementIndex) Load(world WorldID, chunk ChunkPos, set PosSet) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	chunks, ok := ix.worlds[world]
	if !ok {
		chunks = make(map[ChunkPos]PosSet)
		ix.worlds[world] = chunks
	}
	cp := make(PosSet, len(set))
	for p := range set {
		if chunk.Contains(p) {
			cp.Add(p)
		}
	}
	chunks[chunk] = cp
}

// TakeAndClear 原子地取出并移除区块集合；ok 表示该区块此前被跟踪
func (ix *PlacementIndex) TakeAndClear(world WorldID, chunk ChunkPos) (PosSet, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	chunks, ok := ix.worlds[world]
	if !ok {
		return PosSet{}, false
	}
	set, ok := chunks[chunk]
	if !ok {
		return PosSet{}, false
	}
	delete(chunks, chunk)
	if len(chunks) == 0 {
		delete(ix.worlds, world)
	}
	return set, true
}

// TrackedChunk 一个被跟踪区块的摘要
type TrackedChunk struct {
	World WorldID  `json:"world"`
	Chunk ChunkPos `json:"chunk"`
	Count int      `json:"count"`
}

// Chunks 列出所有被跟踪区块，按世界与坐标排序
func (ix *PlacementIndex) Chunks() []TrackedChunk {
	ix.mu.RLock()
	out := make([]TrackedChunk, 0)
	for w, chunks := range ix.worlds {
		for c, set := range chunks {
			out = append(out, TrackedChunk{World: w, Chunk: c, Count: len(set)})
		}
	}
	ix.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.World != b.World {
			return a.World < b.World
		}
		if a.Chunk.X != b.Chunk.X {
			return a.Chunk.X < b.Chunk.X
		}
		return a.Chunk.Z < b.Chunk.Z
	})
	return out
}

// Len 被跟踪的方块总数
func (ix *PlacementIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, chunks := range ix.worlds {
		for _, set := range chunks {
			n += len(set)
		}
	}
	return n
}
