// internal/audit/audit.go
package audit

import (
	"context"
	"time"

	"career-predictor/internal/common/logger"
	"career-predictor/internal/common/metrics"
	"career-predictor/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Entry is one scored record as written to the prediction log.
type Entry struct {
	ID           string                  `json:"id"`
	RequestID    string                  `json:"requestId,omitempty"`
	Source       string                  `json:"source"`
	ModelVersion string                  `json:"modelVersion"`
	Input        models.CareerProfile    `json:"input"`
	Output       models.PredictionOutput `json:"output"`
	CreatedAt    time.Time               `json:"createdAt"`
}

// NewEntry stamps a fresh id and creation time.
func NewEntry(requestID, source, modelVersion string, in models.CareerProfile, out models.PredictionOutput) Entry {
	return Entry{
		ID:           uuid.NewString(),
		RequestID:    requestID,
		Source:       source,
		ModelVersion: modelVersion,
		Input:        in,
		Output:       out,
		CreatedAt:    time.Now().UTC(),
	}
}

// Sink persists prediction log entries.
type Sink interface {
	Name() string
	Record(ctx context.Context, entry Entry) error
}

// Multi writes each entry to every sink concurrently. A failing sink is
// logged and counted; the first error is returned for the caller to log.
type Multi struct {
	sinks  []Sink
	logger logger.Logger
}

func NewMulti(log logger.Logger, sinks ...Sink) *Multi {
	return &Multi{
		sinks:  sinks,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

func (m *Multi) Name() string { return "multi" }

// Len reports how many sinks are attached.
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Record(ctx context.Context, entry Entry) error {
	var g errgroup.Group
	for _, s := range m.sinks {
		g.Go(func() error {
			if err := s.Record(ctx, entry); err != nil {
				metrics.AuditWriteFailures.WithLabelValues(s.Name()).Inc()
				m.logger.Warn("audit write failed", map[string]interface{}{
					"sink":    s.Name(),
					"entryId": entry.ID,
					"error":   err,
				})
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
