package eventlog

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/logctx"
	"github.com/ticketwell/metering/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a billing event log row. The webhook response
// never waits on audit writes; a lost row costs diagnostics, not correctness.
func (s *Service) Save(ctx context.Context, row *models.BillingEventLog) {
	go func() {
		if row == nil {
			return
		}
		if row.ID == "" {
			row.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(row).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save billing event log: %v", err)
		}
	}()
}

// ListByEventID returns all delivery attempts recorded for one provider
// event id, oldest first.
func (s *Service) ListByEventID(ctx context.Context, eventID string) ([]*models.BillingEventLog, error) {
	var rows []*models.BillingEventLog
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
