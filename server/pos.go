package server

import (
	"fmt"
	"strings"
)

// ChunkSize 区块水平边长（方块数）
const ChunkSize = 16

// WorldID 世界/维度标识，形如 "minecraft:overworld"
type WorldID string

// Path 返回命名空间之后的部分，用作磁盘上的世界目录名
func (w WorldID) Path() string {
	s := string(w)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ChunkPos 区块坐标 (x, z)
type ChunkPos struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

func (c ChunkPos) String() string { return fmt.Sprintf("[%d, %d]", c.X, c.Z) }

// Contains 判断方块是否落在该区块内
func (c ChunkPos) Contains(p BlockPos) bool { return ChunkOf(p) == c }

// BlockPos 世界绝对方块坐标
type BlockPos struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

func (p BlockPos) String() string { return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z) }

// Below 正下方的方块
func (p BlockPos) Below() BlockPos { return BlockPos{X: p.X, Y: p.Y - 1, Z: p.Z} }

// ChunkOf 计算方块所属区块（算术右移即向下取整，负坐标同样成立）
func ChunkOf(p BlockPos) ChunkPos {
	return ChunkPos{X: p.X >> 4, Z: p.Z >> 4}
}

// PosSet 方块坐标集合
type PosSet map[BlockPos]struct{}

// NewPosSet 由若干坐标构造集合
func NewPosSet(ps ...BlockPos) PosSet {
	s := make(PosSet, len(ps))
	for _, p := range ps {
		s[p] = struct{}{}
	}
	return s
}

func (s PosSet) Add(p BlockPos) { s[p] = struct{}{} }

func (s PosSet) Has(p BlockPos) bool {
	_, ok := s[p]
	return ok
}

func (s PosSet) Clone() PosSet {
	out := make(PosSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Slice 以任意顺序返回集合成员
func (s PosSet) Slice() []BlockPos {
	out := make([]BlockPos, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}
