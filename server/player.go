package server

import "github.com/google/uuid"

// PlayerID 玩家唯一标识（宿主提供的 UUID）
type PlayerID = uuid.UUID

// ParsePlayerID 解析宿主传来的 UUID 字符串
func ParsePlayerID(s string) (PlayerID, error) {
	return uuid.Parse(s)
}

// PlayerView 某一 Tick 时刻宿主报告的玩家快照
type PlayerView struct {
	ID   PlayerID
	Name string
	Pos  BlockPos // 玩家所在方块（已向下取整）
}
