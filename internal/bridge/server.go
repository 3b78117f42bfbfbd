// Package bridge exposes the environment's step/reset contract to an
// out-of-process agent over a TCP JSON-lines protocol. Each connection owns
// a private environment instance, so concurrent connections are independent
// episodes with zero shared mutable state.
//
// Protocol: on connect the server resets the environment and writes one
// Response carrying the initial observation. The client then writes one JSON
// object per line; {"seed": n} starts a new episode deterministically,
// {"action": [...]} advances one step. Every line is answered with one
// Response.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/go-logr/logr"

	"github.com/thermalstack/racksim/internal/env"
	"github.com/thermalstack/racksim/pkg/config"
)

// Request is one client line: either a step action or an episode reset.
type Request struct {
	Action []float64 `json:"action,omitempty"`
	Seed   *int64    `json:"seed,omitempty"`
}

// Response answers every request, and carries the initial observation on
// connect and after a reset.
type Response struct {
	Observation []float64 `json:"observation"`
	Reward      float64   `json:"reward"`
	Terminated  bool      `json:"terminated"`
	Truncated   bool      `json:"truncated"`
	Info        env.Info  `json:"info"`
	Error       string    `json:"error,omitempty"`
}

// Server accepts agent connections and runs one environment per connection.
type Server struct {
	cfg config.Config
	log logr.Logger
}

// NewServer builds a bridge server. The configuration is validated by each
// per-connection environment constructor.
func NewServer(cfg config.Config, log logr.Logger) *Server {
	return &Server{cfg: cfg, log: log}
}

// ListenAndServe listens on addr and serves until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until the context is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("Agent bridge listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		go s.handleConn(conn)
	}
}

// handleConn serves one agent session: a private environment driven by
// JSON lines until the client disconnects.
func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	log := s.log.WithValues("remote", conn.RemoteAddr().String())
	log.Info("Agent connected")

	e, err := env.New(s.cfg, log)
	if err != nil {
		log.Error(err, "Failed to construct environment")
		return
	}

	writer := bufio.NewWriter(conn)
	encoder := json.NewEncoder(writer)
	scanner := bufio.NewScanner(conn)

	send := func(resp Response) bool {
		if err := encoder.Encode(&resp); err != nil {
			log.Error(err, "Encoding response")
			return false
		}
		if err := writer.Flush(); err != nil {
			log.Error(err, "Flushing response")
			return false
		}
		return true
	}

	obs, info, err := e.Reset()
	if err != nil {
		log.Error(err, "Initial reset failed")
		return
	}
	if !send(Response{Observation: obs, Info: info}) {
		return
	}

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			if !send(Response{Error: fmt.Sprintf("bad request: %v", err)}) {
				return
			}
			continue
		}

		var resp Response
		switch {
		case req.Seed != nil:
			obs, info, err := e.ResetWithSeed(*req.Seed)
			if err != nil {
				resp = Response{Error: err.Error()}
			} else {
				resp = Response{Observation: obs, Info: info}
			}
		case req.Action != nil:
			result, err := e.Step(req.Action)
			if err != nil {
				resp = Response{Error: err.Error()}
			} else {
				resp = Response{
					Observation: result.Observation,
					Reward:      result.Reward,
					Terminated:  result.Terminated,
					Truncated:   result.Truncated,
					Info:        result.Info,
				}
			}
		default:
			resp = Response{Error: "request must carry an action or a seed"}
		}

		if !send(resp) {
			return
		}
	}
	log.Info("Agent disconnected", "steps", e.StepCount())
}
