package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tova-go/internal/models"
)

// Payments reads the registration system's payment records.
type Payments struct {
	db *gorm.DB
}

func NewPayments(db *gorm.DB) *Payments {
	return &Payments{db: db}
}

// ApprovedPayment finds the approved payment matching email and code.
func (p *Payments) ApprovedPayment(ctx context.Context, email, code string) (*models.Payment, error) {
	var payment models.Payment
	err := p.db.WithContext(ctx).
		Where("email = ? AND payment_code = ? AND status = ?", email, code, models.PaymentApproved).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
