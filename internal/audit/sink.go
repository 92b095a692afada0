// Package audit provides the Audit Sink (§4.1): every other service
// component emits through Sink.Emit rather than writing audit_logs
// directly, so the signing and best-effort search indexing happen
// exactly once regardless of which module is recording
// the event. Adapted from the teacher's AuditService.ProcessAndStoreEvent,
// generalized from its service-singleton shape to a dependency injected
// into every domain service (§9's resolved Open Question on audit
// wiring).
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ngbank/aml-compliance/internal/crypto"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/store"
)

// Indexer is the subset of the search repository the Sink needs; kept
// narrow so tests can fake it without dragging in an Elasticsearch client.
type Indexer interface {
	IndexAuditLog(ctx context.Context, e *domain.AuditLog) error
}

type Sink struct {
	logs      store.AuditLogStore
	index     Indexer
	encryptor *crypto.FieldEncryptor
	logger    *zap.Logger
}

func NewSink(logs store.AuditLogStore, index Indexer, encryptor *crypto.FieldEncryptor, logger *zap.Logger) *Sink {
	return &Sink{logs: logs, index: index, encryptor: encryptor, logger: logger}
}

// Emit finalises and persists an AuditLog. It signs the record, writes it
// to the immutable ledger synchronously (the critical path — a failure
// here is returned to the caller), then indexes it for search best-effort
// in the background. Records are not hash-chained: Emit does not link a
// record to the previous record's signature.
func (s *Sink) Emit(ctx context.Context, e *domain.AuditLog) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	userID := ""
	if e.UserID != nil {
		userID = e.UserID.String()
	}
	e.DigitalSignature = s.encryptor.GenerateDigitalSignature(
		e.EventID, userID, e.Action, e.Timestamp.Format(time.RFC3339), string(e.Status),
	)

	if err := s.logs.Create(ctx, e); err != nil {
		s.logger.Error("failed to persist audit log",
			zap.String("event_id", e.EventID),
			zap.Error(err),
		)
		return fmt.Errorf("audit ledger write failed: %w", err)
	}

	s.asyncIndex(e)
	return nil
}

func (s *Sink) asyncIndex(e *domain.AuditLog) {
	if s.index == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in async audit index", zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.index.IndexAuditLog(ctx, e); err != nil {
			s.logger.Warn("failed to index audit log",
				zap.String("event_id", e.EventID),
				zap.Error(err),
			)
		}
	}()
}

// VerifyIntegrity recomputes an AuditLog's digital signature and reports
// whether it still matches the stored one, per §4.8's integrity check.
func (s *Sink) VerifyIntegrity(e *domain.AuditLog) bool {
	userID := ""
	if e.UserID != nil {
		userID = e.UserID.String()
	}
	return s.encryptor.VerifyDigitalSignature(
		e.EventID, userID, e.Action, e.Timestamp.Format(time.RFC3339), string(e.Status), e.DigitalSignature,
	)
}
