package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tova-go/internal/metrics"
	"tova-go/internal/models"
	"tova-go/internal/repository"
	"tova-go/internal/utils"
)

// ResultStore is the persistence the results API needs.
type ResultStore interface {
	SaveTestResultTx(ctx context.Context, summary *models.TestResult, events []models.TestEvent) error
	LatestByPaymentCode(ctx context.Context, code string) (*models.TestResult, error)
	HasResult(ctx context.Context, code string) (bool, error)
	Events(ctx context.Context, resultID uint) ([]models.TestEvent, error)
}

// Mailer sends the results email after a result is saved.
type Mailer interface {
	SendResultsEmail(models.TestResult) error
}

type ResultsHandler struct {
	log    *zap.Logger
	store  ResultStore
	mailer Mailer
}

func NewResultsHandler(log *zap.Logger, store ResultStore, mailer Mailer) *ResultsHandler {
	return &ResultsHandler{log: log, store: store, mailer: mailer}
}

// ResultView is the JSON shape of a stored result.
type ResultView struct {
	ID                        uint      `json:"id"`
	PaymentCode               string    `json:"paymentCode"`
	Email                     string    `json:"email"`
	ParticipantName           string    `json:"participantName"`
	Status                    string    `json:"status"`
	EndReason                 string    `json:"endReason"`
	DurationMs                int64     `json:"durationMs"`
	OmissionErrors            int       `json:"omissionErrors"`
	CommissionErrors          int       `json:"commissionErrors"`
	MeanReactionTimeMs        float64   `json:"meanReactionTimeMs"`
	ReactionTimeVariabilityMs float64   `json:"reactionTimeVariabilityMs"`
	DetectionRate             float64   `json:"detectionRate"`
	Attentiveness             int       `json:"attentiveness"`
	AttentivenessBand         string    `json:"attentivenessBand"`
	ImpulseControl            int       `json:"impulseControl"`
	ImpulseControlBand        string    `json:"impulseControlBand"`
	Consistency               int       `json:"consistency"`
	ConsistencyBand           string    `json:"consistencyBand"`
	TestDate                  time.Time `json:"testDate"`
}

func newResultView(r *models.TestResult) ResultView {
	return ResultView{
		ID:                        r.ID,
		PaymentCode:               r.PaymentCode,
		Email:                     r.Email,
		ParticipantName:           r.ParticipantName,
		Status:                    r.Status,
		EndReason:                 r.EndReason,
		DurationMs:                r.DurationMs,
		OmissionErrors:            r.OmissionErrors,
		CommissionErrors:          r.CommissionErrors,
		MeanReactionTimeMs:        r.MeanReactionTimeMs,
		ReactionTimeVariabilityMs: r.ReactionTimeVariabilityMs,
		DetectionRate:             r.DetectionRate,
		Attentiveness:             r.Attentiveness,
		AttentivenessBand:         metrics.Band(r.Attentiveness),
		ImpulseControl:            r.ImpulseControl,
		ImpulseControlBand:        metrics.Band(r.ImpulseControl),
		Consistency:               r.Consistency,
		ConsistencyBand:           metrics.Band(r.Consistency),
		TestDate:                  r.TestDate,
	}
}

// SaveResult stores a completed session and sends the results email.
func (h *ResultsHandler) SaveResult(c *gin.Context) {
	var sub models.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.log.Warn("Failed to bind submission", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data"})
		return
	}
	sub.Participant.PaymentCode = utils.NormalizePaymentCode(sub.Participant.PaymentCode)
	if !utils.IsValidEmail(sub.Participant.Email) || !utils.IsValidPaymentCode(sub.Participant.PaymentCode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and payment code are required"})
		return
	}
	if sub.TestDate.IsZero() {
		sub.TestDate = time.Now().UTC()
	}

	summary, events, err := sub.ToRecords()
	if err != nil {
		h.log.Error("Failed to convert submission", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data"})
		return
	}

	err = h.store.SaveTestResultTx(c.Request.Context(), &summary, events)
	switch {
	case errors.Is(err, repository.ErrDuplicateResult):
		c.JSON(http.StatusConflict, gin.H{"error": "A result is already recorded for this payment code"})
		return
	case err != nil:
		h.log.Error("Failed to save test result", zap.Error(err), zap.String("payment_code", summary.PaymentCode))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save result"})
		return
	}

	h.log.Info("Test result saved",
		zap.Uint("id", summary.ID),
		zap.String("session", summary.SessionID),
		zap.String("payment_code", summary.PaymentCode),
		zap.Int("events", len(events)),
	)
	if h.mailer != nil {
		if err := h.mailer.SendResultsEmail(summary); err != nil {
			h.log.Error("Failed to send results email", zap.Error(err), zap.String("payment_code", summary.PaymentCode))
		}
	}
	c.JSON(http.StatusCreated, gin.H{"data": newResultView(&summary)})
}

// GetResult returns the latest result for a payment code.
func (h *ResultsHandler) GetResult(c *gin.Context) {
	result, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newResultView(result)})
}

func (h *ResultsHandler) lookup(c *gin.Context) (*models.TestResult, bool) {
	code := utils.NormalizePaymentCode(c.Param("code"))
	if !utils.IsValidPaymentCode(code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment code"})
		return nil, false
	}
	result, err := h.store.LatestByPaymentCode(c.Request.Context(), code)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No result for this payment code"})
		return nil, false
	}
	if err != nil {
		h.log.Error("Failed to load test result", zap.Error(err), zap.String("payment_code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load result"})
		return nil, false
	}
	return result, true
}
