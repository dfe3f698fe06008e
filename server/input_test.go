package server

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInputPlayerEvents(t *testing.T) {
	id := uuid.New()
	for typ, want := range map[string]Event{
		"join":    PlayerJoin{Player: id},
		"respawn": PlayerRespawn{Player: id},
		"LEAVE":   PlayerLeave{Player: id},
	} {
		ev, err := DecodeInput([]byte(`{"type":"` + typ + `","player":"` + id.String() + `"}`))
		require.NoError(t, err, typ)
		assert.Equal(t, want, ev, typ)
	}

	_, err := DecodeInput([]byte(`{"type":"join","player":"not-a-uuid"}`))
	assert.Error(t, err)
}

func TestDecodeInputBlockAndChunkEvents(t *testing.T) {
	ev, err := DecodeInput([]byte(`{"type":"place","world":"minecraft:overworld","pos":{"x":10,"y":64,"z":-3}}`))
	require.NoError(t, err)
	assert.Equal(t, BlockPlaced{World: overworld, Pos: BlockPos{10, 64, -3}}, ev)

	ev, err = DecodeInput([]byte(`{"type":"break","world":"minecraft:overworld","pos":{"x":1,"y":2,"z":3}}`))
	require.NoError(t, err)
	assert.Equal(t, BlockBroken{World: overworld, Pos: BlockPos{1, 2, 3}}, ev)

	ev, err = DecodeInput([]byte(`{"type":"chunk_load","world":"minecraft:overworld","chunk":{"x":-1,"z":4}}`))
	require.NoError(t, err)
	assert.Equal(t, ChunkLoad{World: overworld, Chunk: ChunkPos{-1, 4}}, ev)

	ev, err = DecodeInput([]byte(`{"type":"chunk_unload","world":"minecraft:overworld","chunk":{"x":0,"z":0}}`))
	require.NoError(t, err)
	assert.Equal(t, ChunkUnload{World: overworld, Chunk: ChunkPos{0, 0}}, ev)

	_, err = DecodeInput([]byte(`{"type":"place","world":"minecraft:overworld"}`))
	assert.Error(t, err)
	_, err = DecodeInput([]byte(`{"type":"chunk_load","chunk":{"x":0,"z":0}}`))
	assert.Error(t, err)
}

func TestDecodeInputTick(t *testing.T) {
	id := uuid.New()
	raw := `{"type":"tick","worlds":[{"world":"minecraft:overworld",
		"players":[{"id":"` + id.String() + `","name":"alex","pos":{"x":1,"y":65,"z":1},"below":"minecraft:stone"}],
		"blocks":[{"pos":{"x":9,"y":9,"z":9},"block":"minecraft:dirt"}]}]}`
	ev, err := DecodeInput([]byte(raw))
	require.NoError(t, err)

	tick, ok := ev.(ServerTick)
	require.True(t, ok)
	require.Len(t, tick.Worlds, 1)
	w := tick.Worlds[0]
	assert.Equal(t, overworld, w.ID())
	assert.Equal(t, []PlayerView{{ID: id, Name: "alex", Pos: BlockPos{1, 65, 1}}}, w.Players())

	b, err := w.BlockAt(BlockPos{1, 64, 1})
	require.NoError(t, err)
	assert.Equal(t, BlockType("minecraft:stone"), b)
	b, err = w.BlockAt(BlockPos{9, 9, 9})
	require.NoError(t, err)
	assert.Equal(t, BlockType("minecraft:dirt"), b)
	_, err = w.BlockAt(BlockPos{0, 0, 0})
	assert.True(t, errors.Is(err, ErrBlockUnknown))
}

func TestDecodeInputErrors(t *testing.T) {
	_, err := DecodeInput([]byte(`{`))
	assert.Error(t, err)

	_, err = DecodeInput([]byte(`{"type":"dance"}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))

	_, err = DecodeInput([]byte(`{"type":"tick","worlds":[{"world":"w","players":[{"id":"x"}]}]}`))
	assert.Error(t, err)
}
