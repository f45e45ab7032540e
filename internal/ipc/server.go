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
	"strings"
	"sync"

	"capturesync/internal/api"
	"capturesync/internal/daemon"
	"capturesync/internal/logging"
	"capturesync/internal/queue"
	"capturesync/internal/services"
)

// ServiceName is the RPC service the daemon registers.
const ServiceName = "CaptureSync"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
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
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logging.NewComponentLogger(logger, "ipc"),
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
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"),
				)
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
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// begin returns a request-scoped context and logger tagged with the caller's
// request id.
func (s *service) begin(env Envelope) (context.Context, *slog.Logger) {
	ctx := s.ctx
	if id := strings.TrimSpace(env.RequestID); id != "" {
		ctx = services.WithRequestID(ctx, id)
	}
	return ctx, logging.WithContext(ctx, s.logger)
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	ctx, logger := s.begin(req.Envelope)
	results, err := s.daemon.Enqueue(ctx, req.RecordIDs)
	if err != nil {
		return err
	}
	resp.Results = results
	logger.Debug("enqueue handled", logging.Int("record_count", len(req.RecordIDs)))
	return nil
}

func (s *service) AddRecord(req AddRecordRequest, resp *AddRecordResponse) error {
	ctx, logger := s.begin(req.Envelope)
	rec, err := s.daemon.AddRecord(ctx, queue.NewRecordParams{
		Title:      req.Title,
		FolderName: req.FolderName,
		DateBucket: req.DateBucket,
		SessionID:  req.SessionID,
		NoteText:   req.NoteText,
	}, req.Recordings, req.Enqueue)
	if err != nil {
		return err
	}
	resp.Record = api.FromRecord(rec)
	logger.Info("record added via IPC",
		logging.Int64(logging.FieldRecordID, rec.ID),
		logging.String(logging.FieldEventType, "record_added"),
	)
	return nil
}

func (s *service) Status(req StatusRequest, resp *StatusResponse) error {
	ctx, _ := s.begin(req.Envelope)
	resp.Status = daemon.ToAPIStatus(s.daemon.Status(ctx))
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	ctx, _ := s.begin(req.Envelope)
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, value := range req.Statuses {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			return fmt.Errorf("unknown queue status %q", value)
		}
		statuses = append(statuses, parsed)
	}
	items, err := s.daemon.ListQueue(ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) QueueStats(req QueueStatsRequest, resp *QueueStatsResponse) error {
	ctx, _ := s.begin(req.Envelope)
	counts, err := s.daemon.QueueStats(ctx)
	if err != nil {
		return err
	}
	health, err := s.daemon.QueueHealth(ctx)
	if err != nil {
		return err
	}
	resp.Counts = counts
	resp.Health = health
	return nil
}

func (s *service) RetryFailed(req RetryFailedRequest, resp *RetryFailedResponse) error {
	ctx, logger := s.begin(req.Envelope)
	logger.Debug("queue retry requested", logging.Int("record_count", len(req.RecordIDs)))
	result, err := s.daemon.RetryFailed(ctx, req.RecordIDs)
	if err != nil {
		return err
	}
	resp.Result = result
	logger.Info("queue items retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int64("updated_count", result.UpdatedCount),
	)
	return nil
}

func (s *service) Record(req RecordRequest, resp *RecordResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid record id %d", req.ID)
	}
	ctx, _ := s.begin(req.Envelope)
	detail, err := s.daemon.Record(ctx, req.ID)
	if err != nil {
		return err
	}
	if detail == nil {
		return fmt.Errorf("record %d not found", req.ID)
	}
	resp.Detail = *detail
	if req.Inspect {
		report, err := s.daemon.InspectRecord(ctx, req.ID)
		if err != nil {
			return err
		}
		resp.Report = &report
	}
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	resp.Events = s.daemon.Events(req.Since, req.Limit)
	return nil
}

func (s *service) CheckIntegrity(req CheckIntegrityRequest, resp *CheckIntegrityResponse) error {
	ctx, logger := s.begin(req.Envelope)
	anomalies, err := s.daemon.CheckIntegrity(ctx)
	if err != nil {
		return err
	}
	resp.Anomalies = anomalies
	logger.Info("integrity check requested",
		logging.Int("anomalies", len(anomalies)),
		logging.String(logging.FieldEventType, "integrity_check"),
	)
	return nil
}

func (s *service) Drain(req DrainRequest, resp *DrainResponse) error {
	s.daemon.Drain()
	resp.Queued = true
	return nil
}
