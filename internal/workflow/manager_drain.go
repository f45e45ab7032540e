package workflow

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"capturesync/internal/logging"
	"capturesync/internal/services"
	"capturesync/internal/upload"
)

// DrainSummary describes one drain pass.
type DrainSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Skipped    bool      `json:"skipped,omitempty"`
	Completed  int       `json:"completed"`
	NoContent  int       `json:"no_content"`
	Retried    int       `json:"retried"`
	Deferred   int       `json:"deferred"`
	Failed     int       `json:"failed"`
	AuthHalted bool      `json:"auth_halted,omitempty"`
}

// session is the remote connection shared by the items of one pass.
type session struct {
	connector Connector
	remote    upload.Remote
	prov      *upload.Provisioner
	sync      *upload.Synchronizer
}

func (s *session) ensure(ctx context.Context, m *Manager) error {
	if s.remote != nil {
		return nil
	}
	if s.connector == nil {
		return services.AuthExpired("connect", errors.New("no remote connector configured"))
	}
	remote, err := s.connector.Connect(ctx)
	if err != nil {
		return err
	}
	s.remote = remote
	s.prov = upload.NewProvisioner(remote, m.logger)
	s.sync = upload.NewSynchronizer(remote, m.logger)
	return nil
}

func (s *session) close() {
	if closer, ok := s.remote.(io.Closer); ok {
		_ = closer.Close()
	}
}

// Drain processes claimable items until none remain, the context ends, or
// the remote rejects the credentials. A call made while another pass is
// running returns immediately with Skipped set.
//
// After the remote rejects the credentials the manager stays auth-halted:
// later passes claim nothing until Wake clears the halt.
func (m *Manager) Drain(ctx context.Context) (summary DrainSummary, err error) {
	summary = DrainSummary{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	if !m.beginDrain() {
		summary.Skipped = true
		return summary, nil
	}
	// endDrain stamps FinishedAt on the named result.
	defer m.endDrain(&summary)

	if m.isAuthHalted() {
		summary.AuthHalted = true
		return summary, nil
	}

	ctx = services.WithRequestID(ctx, summary.ID)
	logger := logging.WithContext(ctx, m.logger)
	sess := &session{connector: m.connector}
	defer sess.close()

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		item, err := m.store.ClaimNext(ctx, m.now())
		if err != nil {
			m.setLastError(err)
			return summary, err
		}
		if item == nil {
			break
		}

		result := m.processItem(ctx, sess, item)
		summary.add(result)
		m.setLastItem(ctx, item.ID)

		switch result.kind {
		case outcomeAuth:
			logger.Info("drain halted until credentials are renewed",
				logging.String(logging.FieldEventType, "drain_auth_halt"),
			)
			return summary, nil
		case outcomeInterrupted:
			return summary, ctx.Err()
		case outcomeRetry:
			wait := m.Backoff(result.attempts)
			logger.Info("backing off before next claim",
				logging.Duration("wait", wait),
				logging.Int("attempts", result.attempts),
			)
			if err := m.sleep(ctx, wait); err != nil {
				return summary, err
			}
		}
	}

	if summary.total() > 0 {
		logger.Info("drain pass finished",
			logging.String(logging.FieldEventType, "drain_complete"),
			logging.Int("completed", summary.Completed),
			logging.Int("no_content", summary.NoContent),
			logging.Int("retried", summary.Retried),
			logging.Int("deferred", summary.Deferred),
			logging.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

func (m *Manager) beginDrain() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draining {
		return false
	}
	m.draining = true
	return true
}

func (m *Manager) isAuthHalted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authHalted
}

// haltForAuth marks the manager auth-halted and reports whether this call
// started the halt.
func (m *Manager) haltForAuth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authHalted {
		return false
	}
	m.authHalted = true
	return true
}

func (m *Manager) clearAuthHalt() {
	m.mu.Lock()
	m.authHalted = false
	m.mu.Unlock()
}

func (m *Manager) endDrain(summary *DrainSummary) {
	summary.FinishedAt = time.Now().UTC()
	m.mu.Lock()
	m.draining = false
	m.lastDrain = *summary
	m.mu.Unlock()
}

func (s *DrainSummary) add(r itemResult) {
	switch r.kind {
	case outcomeCompleted:
		s.Completed++
	case outcomeNoContent:
		s.NoContent++
	case outcomeRetry:
		s.Retried++
	case outcomePartial:
		s.Deferred++
	case outcomeFailed:
		s.Failed++
	case outcomeAuth:
		s.AuthHalted = true
	}
}

func (s DrainSummary) total() int {
	return s.Completed + s.NoContent + s.Retried + s.Deferred + s.Failed
}
