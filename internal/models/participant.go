package models

import "time"

// Participant is the identity a session's result is submitted under. It
// comes from the registration/payment system and is otherwise opaque.
type Participant struct {
	Email       string `json:"email" yaml:"email"`
	PaymentCode string `json:"paymentCode" yaml:"payment_code"`
	Name        string `json:"name" yaml:"name"`
}

// DisplayName falls back to the generic participant label.
func (p Participant) DisplayName() string {
	if p.Name == "" {
		return "Participant"
	}
	return p.Name
}

// Payment is the slice of the registration system's payment record the
// access check needs.
type Payment struct {
	ID          uint   `gorm:"primaryKey"`
	Email       string `gorm:"index"`
	PaymentCode string `gorm:"uniqueIndex"`
	Name        string
	Status      string // 'pending', 'approved' or 'rejected'
	CreatedAt   time.Time
}

const PaymentApproved = "approved"
