package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"structspawn.ai/internal/logging"
	"structspawn.ai/internal/protocol"
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/transform"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		category = flag.String("category", "corridor", "structure category to place")
		pos      = flag.String("pos", "0,0,0", "connection point x,y,z in batch coordinates")
		front    = flag.String("front", "SOUTH", "connection point front")
		rotate   = flag.Int("rotate", 0, "batch rotation in quarter turns or degrees")
		move     = flag.String("move", "0,0,0", "batch translation x,y,z")
		events   = flag.Int("events", 0, "exit after this many SPAWN events (0: run until interrupted)")
	)
	flag.Parse()

	logger := logging.New(os.Stdout, "info", true).With().Str("app", "bot").Logger()

	msg, err := buildSchedule(*category, *pos, *front, *rotate, *move)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad flags")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close()

	if err := conn.WriteJSON(msg); err != nil {
		logger.Fatal().Err(err).Msg("send SCHEDULE")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	seen := 0
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if handle(logger, raw) {
			seen++
			if *events > 0 && seen >= *events {
				return
			}
		}
	}
}

// handle logs one server message and reports whether it was a SPAWN event.
func handle(logger zerolog.Logger, raw []byte) bool {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return false
	}
	switch base.Type {
	case protocol.TypeAck:
		var a protocol.AckMsg
		if err := json.Unmarshal(raw, &a); err != nil {
			return false
		}
		logger.Info().
			Str("ack_for", a.AckFor).
			Bool("accepted", a.Accepted).
			Interface("scheduled", a.Scheduled).
			Int("skipped", a.Skipped).
			Str("code", a.Code).
			Msg("ACK")
	case protocol.TypeSpawn:
		var s protocol.SpawnMsg
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		logger.Info().
			Uint64("tick", s.Tick).
			Str("outcome", s.Outcome).
			Uint64("request_id", s.RequestID).
			Str("category", s.Category).
			Str("template", s.TemplateID).
			Ints("anchor", s.Anchor[:]).
			Int("depth", s.Depth).
			Msg("SPAWN")
		return true
	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(raw, &e); err != nil {
			return false
		}
		logger.Warn().Str("code", e.Code).Str("message", e.Message).Msg("ERROR")
	}
	return false
}

func buildSchedule(category, pos, front string, rotate int, move string) (protocol.ScheduleMsg, error) {
	p, err := parseVec(pos)
	if err != nil {
		return protocol.ScheduleMsg{}, fmt.Errorf("pos: %w", err)
	}
	m, err := parseVec(move)
	if err != nil {
		return protocol.ScheduleMsg{}, fmt.Errorf("move: %w", err)
	}
	side, err := geom.ParseSide(front)
	if err != nil {
		return protocol.ScheduleMsg{}, fmt.Errorf("front: %w", err)
	}
	return protocol.ScheduleMsg{
		Type:            protocol.TypeSchedule,
		ProtocolVersion: protocol.Version,
		ID:              "S_bot_1",
		Transform: transform.NewChain(
			transform.Rotation{Turns: geom.NormalizeTurns(rotate)},
			transform.Translation{Offset: m},
		),
		Placements: []protocol.PlacementMsg{{Pos: p.ToArray(), Front: side, Category: category}},
	}, nil
}

func parseVec(s string) (geom.Vec3i, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geom.Vec3i{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var xyz [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return geom.Vec3i{}, err
		}
		xyz[i] = n
	}
	return geom.FromArray(xyz), nil
}
