package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/logctx"
	"github.com/ticketwell/metering/pkg/tool"
	"github.com/ticketwell/metering/pkg/types"
)

var (
	ErrNotFound          = errors.New("billing record not found")
	ErrInvalidTransition = errors.New("invalid billing status transition")
)

// Service manages the invoice mirror. Every write is idempotent with respect
// to at-least-once webhook delivery: creates dedupe on the external invoice
// id, paid replays are no-ops.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

type CreateParams struct {
	SubscriptionID          string
	ExternalInvoiceID       string
	ExternalPaymentIntentID *string
	Status                  types.BillingStatus
	AmountDueCents          int64
	Currency                string
	BillingDate             time.Time
	DueDate                 *time.Time
	LineItems               []types.LineItem
	Metadata                map[string]any
}

func (p *CreateParams) validate() error {
	if p.SubscriptionID == "" {
		return fmt.Errorf("subscription_id is required")
	}
	if p.ExternalInvoiceID == "" {
		return fmt.Errorf("external_invoice_id is required")
	}
	if p.AmountDueCents < 0 {
		return fmt.Errorf("amount_due_cents must not be negative")
	}
	if p.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if p.BillingDate.IsZero() {
		return fmt.Errorf("billing_date is required")
	}
	return nil
}

// Create records a new invoice. When a record with the same external invoice
// id already exists the existing record is returned unchanged; duplicate
// deliveries of invoice-created events converge on the first write.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.BillingRecord, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	status := p.Status
	if status == "" {
		status = types.BillingStatusOpen
	}

	record := &models.BillingRecord{
		ID:                      tool.GenerateUUIDV7(),
		SubscriptionID:          p.SubscriptionID,
		ExternalInvoiceID:       p.ExternalInvoiceID,
		ExternalPaymentIntentID: p.ExternalPaymentIntentID,
		Status:                  status,
		AmountDueCents:          p.AmountDueCents,
		AmountRemainingCents:    p.AmountDueCents,
		Currency:                p.Currency,
		BillingDate:             p.BillingDate,
		DueDate:                 p.DueDate,
		LineItems:               datatypes.NewJSONType(p.LineItems),
		Metadata:                datatypes.JSONMap(p.Metadata),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, lookupErr := s.GetByExternalInvoiceID(ctx, p.ExternalInvoiceID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			logctx.FromCtx(ctx, s.log).Infow("billing record already exists, returning existing",
				"external_invoice_id", p.ExternalInvoiceID, "billing_record_id", existing.ID)
			return existing, nil
		}
		return nil, err
	}
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.BillingRecord, error) {
	var record models.BillingRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) GetByExternalInvoiceID(ctx context.Context, externalInvoiceID string) (*models.BillingRecord, error) {
	var record models.BillingRecord
	err := s.db.WithContext(ctx).Where("external_invoice_id = ?", externalInvoiceID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) ListBySubscription(ctx context.Context, subscriptionID string) ([]*models.BillingRecord, error) {
	var records []*models.BillingRecord
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("billing_date DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkPaid settles the invoice. Replaying a paid event on an already-paid
// record returns the record untouched.
func (s *Service) MarkPaid(ctx context.Context, externalInvoiceID string, amountPaidCents int64, paymentIntentID *string, paidAt time.Time) (*models.BillingRecord, error) {
	return s.mutate(ctx, externalInvoiceID, func(record *models.BillingRecord) (bool, error) {
		if record.Status == types.BillingStatusPaid {
			return false, nil
		}
		if !CanTransition(record.Status, types.BillingStatusPaid) {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, types.BillingStatusPaid)
		}
		record.Status = types.BillingStatusPaid
		record.AmountPaidCents = amountPaidCents
		record.AmountRemainingCents = record.AmountDueCents - amountPaidCents
		if record.AmountRemainingCents < 0 {
			record.AmountRemainingCents = 0
		}
		if paymentIntentID != nil {
			record.ExternalPaymentIntentID = paymentIntentID
		}
		record.PaidAt = &paidAt
		return true, nil
	})
}

// RecordFailedAttempt bumps the attempt counter and stores the provider's
// failure reason. An open record past its due date moves to uncollectible.
func (s *Service) RecordFailedAttempt(ctx context.Context, externalInvoiceID string, reason string, failedAt time.Time) (*models.BillingRecord, error) {
	return s.mutate(ctx, externalInvoiceID, func(record *models.BillingRecord) (bool, error) {
		if record.Status.Terminal() {
			logctx.FromCtx(ctx, s.log).Warnw("payment failure on settled billing record, ignoring",
				"external_invoice_id", externalInvoiceID, "status", record.Status)
			return false, nil
		}
		record.AttemptCount++
		record.LastFailureReason = &reason
		if record.Status == types.BillingStatusOpen && record.DueDate != nil && failedAt.After(*record.DueDate) {
			record.Status = types.BillingStatusUncollectible
		}
		return true, nil
	})
}

// Void cancels the invoice and zeroes the remaining balance.
func (s *Service) Void(ctx context.Context, externalInvoiceID string, voidedAt time.Time) (*models.BillingRecord, error) {
	return s.mutate(ctx, externalInvoiceID, func(record *models.BillingRecord) (bool, error) {
		if record.Status == types.BillingStatusVoid {
			return false, nil
		}
		if !CanTransition(record.Status, types.BillingStatusVoid) {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, types.BillingStatusVoid)
		}
		record.Status = types.BillingStatusVoid
		record.AmountRemainingCents = 0
		record.VoidedAt = &voidedAt
		return true, nil
	})
}

// UpdateStatus applies an arbitrary provider-driven status change under the
// transition table.
func (s *Service) UpdateStatus(ctx context.Context, externalInvoiceID string, to types.BillingStatus) (*models.BillingRecord, error) {
	return s.mutate(ctx, externalInvoiceID, func(record *models.BillingRecord) (bool, error) {
		if record.Status == to {
			return false, nil
		}
		if !CanTransition(record.Status, to) {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, to)
		}
		record.Status = to
		if to == types.BillingStatusUncollectible {
			record.AmountRemainingCents = record.AmountDueCents - record.AmountPaidCents
		}
		return true, nil
	})
}

// mutate loads the record by external invoice id under a row lock, applies fn
// and saves when fn reports a change.
func (s *Service) mutate(ctx context.Context, externalInvoiceID string, fn func(*models.BillingRecord) (bool, error)) (*models.BillingRecord, error) {
	var record models.BillingRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_invoice_id = ?", externalInvoiceID).
			First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		changed, err := fn(&record)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return tx.Save(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
