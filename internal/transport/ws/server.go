package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"structspawn.ai/internal/protocol"
	"structspawn.ai/internal/sim/spawn"
	"structspawn.ai/internal/sim/world"
)

// World is the part of *world.World the endpoint drives.
type World interface {
	ID() string
	Submit(ctx context.Context, b spawn.Batch) (spawn.ScheduleResult, error)
	Cancel(ctx context.Context, id spawn.RequestID) (bool, error)
	Subscribe(buffer int) (<-chan world.SpawnEvent, func())
}

type Server struct {
	world     World
	validator *protocol.Validator
	log       zerolog.Logger

	upgrader websocket.Upgrader
	nextConn atomic.Uint64

	// SubmitTimeout bounds how long a SCHEDULE waits for the world loop.
	SubmitTimeout time.Duration
}

func NewServer(w World, validator *protocol.Validator, logger zerolog.Logger) *Server {
	return &Server{
		world:     w,
		validator: validator,
		log:       logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		SubmitTimeout: 5 * time.Second,
	}
}

// Handler upgrades to a websocket session. Clients send SCHEDULE and CANCEL;
// the server answers with ACK or ERROR and streams SPAWN events unless the
// query has events=none.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := &session{
			id:   fmt.Sprintf("C%06d", s.nextConn.Add(1)),
			conn: conn,
			out:  make(chan []byte, 256),
		}
		log := s.log.With().Str("session", sess.id).Logger()
		log.Info().Str("remote", r.RemoteAddr).Msg("session opened")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.writeLoop(ctx, cancel)
		}()

		if r.URL.Query().Get("events") != "none" {
			events, unsubscribe := s.world.Subscribe(256)
			defer unsubscribe()
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.forwardEvents(ctx, sess, events)
			}()
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleMessage(ctx, sess, log, msg)
		}
		cancel()
		wg.Wait()
		log.Info().Msg("session closed")
	}
}

func (s *Server) handleMessage(ctx context.Context, sess *session, log zerolog.Logger, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		sess.send(protocol.NewError(protocol.ErrProtoBadRequest, "invalid json"))
		return
	}
	if base.ProtocolVersion != protocol.Version {
		sess.send(protocol.NewError(protocol.ErrProtoVersion, fmt.Sprintf("protocol_version must be %s", protocol.Version)))
		return
	}
	switch base.Type {
	case protocol.TypeSchedule, protocol.TypeCancel:
	default:
		sess.send(protocol.NewError(protocol.ErrProtoBadRequest, fmt.Sprintf("unsupported message type %q", base.Type)))
		return
	}
	if s.validator != nil {
		if err := s.validator.Validate(base.Type, msg); err != nil {
			log.Debug().Err(err).Str("type", base.Type).Msg("schema validation failed")
			sess.send(protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
			return
		}
	}

	switch base.Type {
	case protocol.TypeSchedule:
		var m protocol.ScheduleMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			sess.send(protocol.NewError(protocol.ErrBadRequest, err.Error()))
			return
		}
		sess.send(s.schedule(ctx, sess, m))
	case protocol.TypeCancel:
		var m protocol.CancelMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			sess.send(protocol.NewError(protocol.ErrBadRequest, err.Error()))
			return
		}
		sess.send(s.cancel(ctx, m))
	}
}

func (s *Server) schedule(ctx context.Context, sess *session, m protocol.ScheduleMsg) protocol.AckMsg {
	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: m.ID}
	ctx, cancel := context.WithTimeout(ctx, s.SubmitTimeout)
	defer cancel()

	res, err := s.world.Submit(ctx, m.Batch("client:"+sess.id))
	if err != nil {
		ack.Code, ack.Message = errorCode(err), err.Error()
		return ack
	}
	ack.Accepted = len(res.Scheduled) > 0 || len(m.Placements) == 0
	ack.Skipped = res.Skipped
	for _, id := range res.Scheduled {
		ack.Scheduled = append(ack.Scheduled, uint64(id))
	}
	if res.Skipped > 0 {
		ack.Code = skipCode(res)
		ack.Message = fmt.Sprintf("%d placement(s) skipped (unknown category %d, queue full %d)",
			res.Skipped, res.SkippedCategory, res.SkippedQueueFull)
	}
	return ack
}

func (s *Server) cancel(ctx context.Context, m protocol.CancelMsg) protocol.AckMsg {
	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: m.ID}
	ctx, cancel := context.WithTimeout(ctx, s.SubmitTimeout)
	defer cancel()

	for _, id := range m.RequestIDs {
		ok, err := s.world.Cancel(ctx, spawn.RequestID(id))
		if err != nil {
			ack.Code, ack.Message = errorCode(err), err.Error()
			return ack
		}
		if ok {
			ack.Cancelled = append(ack.Cancelled, id)
		}
	}
	ack.Accepted = len(ack.Cancelled) > 0
	if !ack.Accepted {
		ack.Code = protocol.ErrNotFound
		ack.Message = "no pending request matched"
	}
	return ack
}

// skipCode picks the ack code for a partially rejected batch. A full queue
// wins since retrying later can succeed.
func skipCode(res spawn.ScheduleResult) string {
	if res.SkippedQueueFull > 0 {
		return protocol.ErrQueueFull
	}
	return protocol.ErrUnknownCategory
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, world.ErrStopped):
		return protocol.ErrWorldStopped
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrWorldBusy
	}
	return protocol.ErrInternal
}

func (s *Server) forwardEvents(ctx context.Context, sess *session, events <-chan world.SpawnEvent) {
	worldID := s.world.ID()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			sess.send(SpawnMsg(worldID, ev))
		}
	}
}

// SpawnMsg converts a world event into its wire form.
func SpawnMsg(worldID string, ev world.SpawnEvent) protocol.SpawnMsg {
	return protocol.SpawnMsg{
		Type:            protocol.TypeSpawn,
		ProtocolVersion: protocol.Version,
		WorldID:         worldID,
		Tick:            ev.Tick,
		Outcome:         ev.Outcome,
		RequestID:       ev.RequestID,
		Category:        ev.Category,
		Anchor:          ev.Anchor,
		Front:           ev.Front,
		TemplateID:      ev.TemplateID,
		Transform:       ev.Transform,
		Tried:           ev.Tried,
		Depth:           ev.Depth,
		Error:           ev.Error,
	}
}

type session struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
}

// send queues v for the writer. A slow client loses messages rather than
// stalling the world.
func (s *session) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case s.out <- b:
	default:
	}
}

func (s *session) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}
}
