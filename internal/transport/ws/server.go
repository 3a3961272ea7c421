package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voxelwfc.ai/internal/encoding"
	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/protocol"
	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/solver"
	"voxelwfc.ai/internal/wfc/tiles"
)

// Generator is the part of generate.Generator the server needs.
type Generator interface {
	Generate(ctx context.Context, seed int64) (*generate.Result, error)
	Model() *tiles.Model
	Shape() geom.Shape
}

type Options struct {
	Wrap        bool
	MaxAttempts int
	// MaxConcurrent caps generations running across all connections.
	MaxConcurrent int
	// RequestTimeout bounds a single GENERATE.
	RequestTimeout time.Duration
	// Seed picks a seed when the client sends none.
	Seed func() int64
	// RateMax GENERATE requests are accepted per connection in every
	// RateWindow; zero disables the limit.
	RateWindow time.Duration
	RateMax    int
}

type Server struct {
	gen  Generator
	log  *log.Logger
	opts Options
	sem  chan struct{}

	upgrader websocket.Upgrader
}

func NewServer(gen Generator, opts Options, logger *log.Logger) *Server {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Seed == nil {
		opts.Seed = func() int64 { return time.Now().UnixNano() }
	}
	return &Server{
		gen:  gen,
		log:  logger,
		opts: opts,
		sem:  make(chan struct{}, opts.MaxConcurrent),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Welcome() protocol.WelcomeMsg {
	m := s.gen.Model()
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Shape:           s.gen.Shape(),
		Wrap:            s.opts.Wrap,
		TileCount:       m.Len(),
		CorpusDigest:    m.Digest(),
		Palette:         m.Palette(),
		MaxAttempts:     s.opts.MaxAttempts,
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		var rl rateWindow

		if err := writeJSON(conn, s.Welcome()); err != nil {
			return
		}

		// One request at a time per connection: the reader blocks while a
		// grid is being generated.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply := s.handle(ctx, &rl, msg)
			if err := writeJSON(conn, reply); err != nil {
				return
			}
		}
	}
}

func (s *Server) handle(ctx context.Context, rl *rateWindow, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.Type != protocol.TypeGenerate {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
	}
	var req protocol.GenerateMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return protocol.NewError("", protocol.ErrBadRequest, "bad GENERATE: "+err.Error())
	}
	if req.ProtocolVersion != protocol.Version {
		return protocol.NewError(req.RequestID, protocol.ErrProtoVersion, "protocol_version must be "+protocol.Version)
	}
	if ok, wait := rl.allow(time.Now(), s.opts.RateWindow, s.opts.RateMax); !ok {
		return protocol.NewError(req.RequestID, protocol.ErrRateLimit, fmt.Sprintf("rate limited; retry in %s", wait.Round(time.Millisecond)))
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		return protocol.NewError(req.RequestID, protocol.ErrBusy, "too many generations in flight")
	}

	seed := req.Seed
	if seed == 0 {
		seed = s.opts.Seed()
	}
	gctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	res, err := s.gen.Generate(gctx, seed)
	if err != nil {
		code := errorCode(err)
		if code == protocol.ErrInternal && s.log != nil {
			s.log.Printf("generate seed=%d: %v", seed, err)
		}
		return protocol.NewError(req.RequestID, code, err.Error())
	}
	return protocol.GridMsg{
		Type:            protocol.TypeGrid,
		ProtocolVersion: protocol.Version,
		RequestID:       req.RequestID,
		RunID:           res.RunID,
		Seed:            res.Seed,
		Attempt:         res.Attempt,
		Attempts:        res.Attempts,
		Shape:           res.Grid.Shape,
		Encoding:        encoding.Name,
		Data:            encoding.EncodeRLE(res.Grid.IDs()),
		DurationMS:      res.Duration.Milliseconds(),
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, generate.ErrAttemptsExhausted):
		return protocol.ErrAttemptsExhausted
	case errors.Is(err, solver.ErrContradiction):
		return protocol.ErrContradiction
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrCanceled
	default:
		return protocol.ErrInternal
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
