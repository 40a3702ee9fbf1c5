// Package rpc exposes the run supervisor over JSON-RPC.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/logging"
	"github.com/xiaot623/gogo/contentflow/internal/service"
)

// ServiceName is the JSON-RPC service name; methods are called as Pipeline.Start etc.
const ServiceName = "Pipeline"

// Server accepts JSON-RPC connections for the pipeline supervisor.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the supervisor.
func NewServer(svc *service.Service) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName(ServiceName, handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			logging.Warn("rpc accept error", "err", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Pipeline RPC methods.
type Handler struct {
	service *service.Service
}

// Empty is the argument of methods that take none.
type Empty struct{}

// ResumeArgs identifies the snapshot to resume from. Either CheckpointID, or
// RunID together with BeforeStep.
type ResumeArgs struct {
	CheckpointID string `json:"checkpoint_id,omitempty"`
	RunID        string `json:"run_id,omitempty"`
	BeforeStep   string `json:"before_step,omitempty"`
}

// Start plans and starts a run.
func (h *Handler) Start(req *domain.StartRunRequest, resp *domain.StartRunResponse) error {
	if req == nil || strings.TrimSpace(req.Context) == "" {
		return errors.New("context is required")
	}

	result, err := h.service.Start(context.Background(), req.Context)
	if err != nil {
		return err
	}
	*resp = *result
	return nil
}

// Status reports the supervisor state.
func (h *Handler) Status(_ *Empty, resp *domain.SupervisorStatus) error {
	*resp = h.service.Status()
	return nil
}

// Stop stops the active run.
func (h *Handler) Stop(_ *Empty, resp *domain.StopResponse) error {
	*resp = h.service.Stop()
	return nil
}

// Resume resumes a run from a checkpoint.
func (h *Handler) Resume(req *ResumeArgs, resp *domain.StartRunResponse) error {
	if req == nil {
		return errors.New("resume request is required")
	}

	var (
		result *domain.StartRunResponse
		err    error
	)
	switch {
	case req.CheckpointID != "":
		result, err = h.service.Resume(context.Background(), req.CheckpointID)
	case req.RunID != "" && req.BeforeStep != "":
		result, err = h.service.ResumeBefore(context.Background(), req.RunID, req.BeforeStep)
	default:
		return errors.New("checkpoint_id or run_id with before_step is required")
	}
	if err != nil {
		return err
	}
	*resp = *result
	return nil
}
