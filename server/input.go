package server

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InputMessage 宿主经 WebSocket 发来的事件（文本 JSON）
// 示例：{"type":"place","world":"minecraft:overworld","pos":{"x":10,"y":64,"z":10}}
//
//	{"type":"tick","worlds":[{"world":"minecraft:overworld",
//	  "players":[{"id":"<uuid>","name":"alex","pos":{"x":1,"y":65,"z":1},"below":"minecraft:stone"}]}]}
type InputMessage struct {
	Type   string       `json:"type"`
	Player string       `json:"player,omitempty"`
	World  WorldID      `json:"world,omitempty"`
	Pos    *BlockPos    `json:"pos,omitempty"`
	Chunk  *ChunkPos    `json:"chunk,omitempty"`
	Worlds []WorldFrame `json:"worlds,omitempty"`
}

// WorldFrame Tick 消息中的单个世界
type WorldFrame struct {
	World   WorldID       `json:"world"`
	Players []PlayerFrame `json:"players"`
	Blocks  []BlockFrame  `json:"blocks,omitempty"`
}

// PlayerFrame Below 为脚下方块类型，等价于在 Blocks 中给出 pos.Below()
type PlayerFrame struct {
	ID    string    `json:"id"`
	Name  string    `json:"name,omitempty"`
	Pos   BlockPos  `json:"pos"`
	Below BlockType `json:"below,omitempty"`
}

type BlockFrame struct {
	Pos   BlockPos  `json:"pos"`
	Block BlockType `json:"block"`
}

// DecodeInput 解析一条入站消息为核心事件
func DecodeInput(payload []byte) (Event, error) {
	var im InputMessage
	if err := json.Unmarshal(payload, &im); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return im.ToEvent()
}

// ToEvent 校验字段并转换
func (im *InputMessage) ToEvent() (Event, error) {
	switch strings.ToLower(im.Type) {
	case "join", "respawn", "leave":
		id, err := ParsePlayerID(im.Player)
		if err != nil {
			return nil, fmt.Errorf("%s: bad player id %q: %w", im.Type, im.Player, err)
		}
		switch strings.ToLower(im.Type) {
		case "join":
			return PlayerJoin{Player: id}, nil
		case "respawn":
			return PlayerRespawn{Player: id}, nil
		default:
			return PlayerLeave{Player: id}, nil
		}
	case "place", "break":
		if im.World == "" || im.Pos == nil {
			return nil, fmt.Errorf("%s: world and pos are required", im.Type)
		}
		if strings.ToLower(im.Type) == "place" {
			return BlockPlaced{World: im.World, Pos: *im.Pos}, nil
		}
		return BlockBroken{World: im.World, Pos: *im.Pos}, nil
	case "chunk_load", "chunk_unload":
		if im.World == "" || im.Chunk == nil {
			return nil, fmt.Errorf("%s: world and chunk are required", im.Type)
		}
		if strings.ToLower(im.Type) == "chunk_load" {
			return ChunkLoad{World: im.World, Chunk: *im.Chunk}, nil
		}
		return ChunkUnload{World: im.World, Chunk: *im.Chunk}, nil
	case "tick":
		worlds := make([]WorldView, 0, len(im.Worlds))
		for _, wf := range im.Worlds {
			w, err := wf.toSnapshot()
			if err != nil {
				return nil, err
			}
			worlds = append(worlds, w)
		}
		return ServerTick{Worlds: worlds}, nil
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnknownEvent, im.Type)
	}
}

func (wf WorldFrame) toSnapshot() (*SnapshotWorld, error) {
	w := &SnapshotWorld{
		World:  wf.World,
		Online: make([]PlayerView, 0, len(wf.Players)),
		Blocks: make(map[BlockPos]BlockType, len(wf.Blocks)+len(wf.Players)),
	}
	for _, b := range wf.Blocks {
		w.Blocks[b.Pos] = b.Block
	}
	for _, pf := range wf.Players {
		id, err := ParsePlayerID(pf.ID)
		if err != nil {
			return nil, fmt.Errorf("tick: bad player id %q in %s: %w", pf.ID, wf.World, err)
		}
		w.Online = append(w.Online, PlayerView{ID: id, Name: pf.Name, Pos: pf.Pos})
		if pf.Below != "" {
			w.Blocks[pf.Pos.Below()] = pf.Below
		}
	}
	return w, nil
}

// OutputMessage 发回宿主的效果
type OutputMessage struct {
	Type    string   `json:"type"` // "message" | "damage" | "error"
	Player  string   `json:"player,omitempty"`
	Message *Message `json:"message,omitempty"`
	Cause   string   `json:"cause,omitempty"`
	Amount  float32  `json:"amount,omitempty"`
	Error   string   `json:"error,omitempty"`
}
