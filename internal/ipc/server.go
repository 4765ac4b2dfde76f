package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"lockline/internal/daemon"
	"lockline/internal/logging"
	"lockline/internal/logs"
)

// maxLogWait caps how long a LogTail call may block server-side.
const maxLogWait = 10 * time.Second

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
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
	if err := rpcServer.RegisterName("Lockline", srv); err != nil {
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
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
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
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
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
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.UptimeSeconds = status.UptimeSeconds
	resp.Lock = status.Lock
	resp.LockboxLevel = status.LockboxLevel
	resp.Maintaining = status.Maintaining
	resp.DAQOnline = status.DAQOnline
	resp.ArchiveDB = status.ArchiveDB
	resp.LockPath = status.LockFilePath
	return nil
}

func (s *service) Scan(req ScanRequest, resp *ScanResponse) error {
	summary, err := s.daemon.Scan(s.ctx, req.RelRange)
	if err != nil {
		return err
	}
	resp.Samples = summary.Samples
	resp.RelRange = summary.RelRange
	if summary.Line != nil {
		resp.Line = &DopplerLine{
			Depth:       summary.Line.Depth,
			DistanceMHz: summary.Line.Distance,
		}
	}
	return nil
}

func (s *service) LockEngage(_ LockEngageRequest, resp *LockEngageResponse) error {
	s.log().Debug("lock engage requested")
	if err := s.daemon.EngageLock(s.ctx); err != nil {
		resp.Engaged = false
		resp.Message = err.Error()
		return nil
	}
	resp.Engaged = true
	resp.Message = "lock maintenance started"
	s.log().Info("lock engaged via IPC",
		logging.String(logging.FieldEventType, "lock_engage"))
	return nil
}

func (s *service) LockRelease(_ LockReleaseRequest, resp *LockReleaseResponse) error {
	s.log().Debug("lock release requested")
	if err := s.daemon.ReleaseLock(s.ctx); err != nil {
		return err
	}
	resp.Released = true
	s.log().Info("lock released via IPC",
		logging.String(logging.FieldEventType, "lock_release"))
	return nil
}

func (s *service) Locate(req LocateRequest, resp *LocateResponse) error {
	s.log().Debug("feature locate requested")
	summary, err := s.daemon.Locate(s.ctx, req.Near)
	if err != nil {
		return err
	}
	resp.Position = summary.Position
	resp.Quality = summary.Quality
	resp.Reliability = summary.Reliability
	return nil
}

func (s *service) Search(_ SearchRequest, resp *SearchResponse) error {
	s.log().Debug("transition search requested")
	residual, err := s.daemon.Search(s.ctx)
	if err != nil {
		return err
	}
	resp.ResidualMHz = residual
	s.log().Info("transition search finished",
		logging.String(logging.FieldEventType, "search_finished"),
		logging.Float64(logging.FieldDistance, residual))
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	events, err := s.daemon.Events(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Events = make([]LockEvent, 0, len(events))
	for _, e := range events {
		resp.Events = append(resp.Events, LockEvent{
			ID:        e.ID,
			CreatedAt: e.CreatedAt,
			Event:     string(e.Event),
			Status:    e.Status,
			Detail:    e.Detail,
		})
	}
	return nil
}

func (s *service) ArchiveHealth(_ ArchiveHealthRequest, resp *ArchiveHealthResponse) error {
	health, err := s.daemon.ArchiveHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.DBPath = health.DBPath
	resp.Scans = health.Scans
	resp.LockEvents = health.LockEvents
	resp.OldestScan = health.OldestScan
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	path := s.daemon.LogFilePath()
	if path == "" {
		resp.Offset = 0
		return nil
	}

	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait > maxLogWait {
		wait = maxLogWait
	}

	result, err := logs.Tail(s.ctx, path, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
