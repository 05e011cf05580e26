package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structspawn.ai/internal/protocol"
	"structspawn.ai/internal/sim/geom"
)

func TestBuildSchedule(t *testing.T) {
	msg, err := buildSchedule("room", "1, 0, 2", "east", 90, "10,0,-4")
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeSchedule, msg.Type)
	require.Len(t, msg.Placements, 1)
	assert.Equal(t, [3]int{1, 0, 2}, msg.Placements[0].Pos)
	assert.Equal(t, geom.East, msg.Placements[0].Front)

	// rotate 90 degrees is one quarter turn: (1,0,2) -> (2,0,-1), then moved.
	b := msg.Batch("bot")
	assert.Equal(t, geom.V(12, 0, -5), b.Chain.Pos(b.Placements[0].Anchor))

	v, err := protocol.NewValidator()
	require.NoError(t, err)
	assert.NoError(t, v.ValidateValue(protocol.TypeSchedule, msg))
}

func TestBuildSchedule_BadFlags(t *testing.T) {
	_, err := buildSchedule("room", "1,2", "NORTH", 0, "0,0,0")
	assert.Error(t, err)
	_, err = buildSchedule("room", "0,0,0", "UPWARD", 0, "0,0,0")
	assert.Error(t, err)
	_, err = buildSchedule("room", "0,0,0", "NORTH", 0, "a,b,c")
	assert.Error(t, err)
}

func TestHandle(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	spawnRaw, _ := json.Marshal(protocol.SpawnMsg{Type: protocol.TypeSpawn, ProtocolVersion: protocol.Version, Outcome: "committed", RequestID: 3})
	assert.True(t, handle(logger, spawnRaw))
	assert.Contains(t, buf.String(), `"outcome":"committed"`)

	ackRaw, _ := json.Marshal(protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, Accepted: true})
	assert.False(t, handle(logger, ackRaw))
	assert.Contains(t, buf.String(), `"message":"ACK"`)

	assert.False(t, handle(logger, []byte("not json")))
}
