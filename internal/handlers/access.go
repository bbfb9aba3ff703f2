package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tova-go/internal/models"
	"tova-go/internal/repository"
	"tova-go/internal/utils"
)

// PaymentStore looks up approved payments.
type PaymentStore interface {
	ApprovedPayment(ctx context.Context, email, code string) (*models.Payment, error)
}

// AccessHandler decides whether a participant may take the test.
type AccessHandler struct {
	log      *zap.Logger
	payments PaymentStore
	results  ResultStore
}

func NewAccessHandler(log *zap.Logger, payments PaymentStore, results ResultStore) *AccessHandler {
	return &AccessHandler{log: log, payments: payments, results: results}
}

type accessRequest struct {
	Email       string `json:"email"`
	PaymentCode string `json:"paymentCode"`
}

// Verify approves a participant with an approved, unused payment code.
func (h *AccessHandler) Verify(c *gin.Context) {
	var req accessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data"})
		return
	}
	code := utils.NormalizePaymentCode(req.PaymentCode)
	if !utils.IsValidEmail(req.Email) || !utils.IsValidPaymentCode(code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and payment code are required"})
		return
	}

	payment, err := h.payments.ApprovedPayment(c.Request.Context(), req.Email, code)
	if errors.Is(err, repository.ErrNotFound) {
		h.log.Info("Access denied", zap.String("email", req.Email), zap.String("payment_code", code))
		c.JSON(http.StatusForbidden, gin.H{"error": "No approved payment for this email and code"})
		return
	}
	if err != nil {
		h.log.Error("Failed to look up payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify access"})
		return
	}

	used, err := h.results.HasResult(c.Request.Context(), code)
	if err != nil {
		h.log.Error("Failed to check for an existing result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify access"})
		return
	}
	if used {
		c.JSON(http.StatusConflict, gin.H{"error": "This payment code has already been used"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"participant": models.Participant{
		Email:       payment.Email,
		PaymentCode: payment.PaymentCode,
		Name:        payment.Name,
	}})
}
