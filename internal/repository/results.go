package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tova-go/internal/models"
)

var (
	// ErrDuplicateResult means a result is already stored for the payment code.
	ErrDuplicateResult = errors.New("result already recorded for payment code")
	ErrNotFound        = errors.New("not found")
)

// Results stores test summaries and their events.
type Results struct {
	db *gorm.DB
}

func NewResults(db *gorm.DB) *Results {
	return &Results{db: db}
}

// SaveTestResultTx saves the summary and all granular events for a session
// in a single transaction. The summary's ID is filled in on success.
func (r *Results) SaveTestResultTx(ctx context.Context, summary *models.TestResult, events []models.TestEvent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(summary).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		for i := range events {
			events[i].ResultID = summary.ID
		}
		return tx.CreateInBatches(events, 500).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrDuplicateResult, summary.PaymentCode)
	}
	return err
}

// LatestByPaymentCode returns the most recent result for a payment code.
func (r *Results) LatestByPaymentCode(ctx context.Context, code string) (*models.TestResult, error) {
	var result models.TestResult
	err := r.db.WithContext(ctx).
		Where("payment_code = ?", code).
		Order("created_at DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// HasResult reports whether a payment code has already been used.
func (r *Results) HasResult(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TestResult{}).Where("payment_code = ?", code).Count(&count).Error
	return count > 0, err
}

// Events returns a result's events in the order they happened.
func (r *Results) Events(ctx context.Context, resultID uint) ([]models.TestEvent, error) {
	var events []models.TestEvent
	err := r.db.WithContext(ctx).
		Where("result_id = ?", resultID).
		Order("at_ms, id").
		Find(&events).Error
	return events, err
}
