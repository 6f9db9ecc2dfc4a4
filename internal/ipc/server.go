// Package ipc exposes daemon control via JSON-RPC over a Unix domain socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"logvault/internal/daemon"
	"logvault/internal/history"
	"logvault/internal/logging"
)

// Server accepts RPC connections on the daemon socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Logvault", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun logvault stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func convertCycle(cycle *history.Cycle) *CycleSummary {
	if cycle == nil {
		return nil
	}
	summary := CycleSummary{
		ID:             cycle.ID,
		StartedAt:      cycle.StartedAt.Format(time.RFC3339),
		FinishedAt:     cycle.FinishedAt.Format(time.RFC3339),
		FilesSeen:      cycle.FilesSeen,
		FilesProcessed: cycle.FilesProcessed,
		FilesSkipped:   cycle.FilesSkipped,
		FilesFailed:    cycle.FilesFailed,
		LinesRead:      cycle.LinesRead,
		LinesWritten:   cycle.LinesWritten,
		LinesDropped:   cycle.LinesDropped,
		Error:          cycle.Error,
	}
	for _, file := range cycle.Files {
		summary.Files = append(summary.Files, FileSummary{
			Source:       file.Source,
			Outcome:      string(file.Outcome),
			LinesWritten: file.LinesWritten,
			Error:        file.Error,
		})
	}
	return &summary
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockPath
	resp.CheckpointPath = status.CheckpointPath
	resp.HistoryDBPath = status.HistoryDBPath
	resp.TrackedFiles = status.Sweep.TrackedFiles
	resp.LastCycle = convertCycle(status.Sweep.LastCycle)
	return nil
}

func (s *service) Sweep(_ SweepRequest, resp *SweepResponse) error {
	s.log().Debug("immediate sweep requested")
	if s.daemon.SweepNow() {
		resp.Triggered = true
		resp.Message = "sweep triggered"
		return nil
	}
	resp.Triggered = false
	resp.Message = "daemon is not running"
	return nil
}

func (s *service) CheckpointList(_ CheckpointListRequest, resp *CheckpointListResponse) error {
	for _, entry := range s.daemon.Checkpoints() {
		resp.Entries = append(resp.Entries, CheckpointEntry{
			Source:      entry.Source,
			Offset:      entry.Record.Offset,
			Destination: entry.Record.Destination,
		})
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	cycles, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	for i := range cycles {
		if summary := convertCycle(&cycles[i]); summary != nil {
			resp.Cycles = append(resp.Cycles, *summary)
		}
	}
	return nil
}
