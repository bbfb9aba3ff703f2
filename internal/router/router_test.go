package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tova-go/internal/models"
	"tova-go/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type emptyStore struct{}

func (emptyStore) SaveTestResultTx(context.Context, *models.TestResult, []models.TestEvent) error {
	return nil
}
func (emptyStore) LatestByPaymentCode(context.Context, string) (*models.TestResult, error) {
	return nil, repository.ErrNotFound
}
func (emptyStore) HasResult(context.Context, string) (bool, error) { return false, nil }
func (emptyStore) Events(context.Context, uint) ([]models.TestEvent, error) {
	return nil, nil
}

type noPayments struct{}

func (noPayments) ApprovedPayment(context.Context, string, string) (*models.Payment, error) {
	return nil, repository.ErrNotFound
}

func TestSecurityHeadersAndHealth(t *testing.T) {
	r := Setup(zap.NewNop(), Deps{Results: emptyStore{}, Payments: noPayments{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestAccessVerifyIsRateLimited(t *testing.T) {
	r := Setup(zap.NewNop(), Deps{Results: emptyStore{}, Payments: noPayments{}, AccessLimit: 2})

	var codes []int
	for i := 0; i < 3; i++ {
		body := bytes.NewBufferString(`{"email":"p@example.com","paymentCode":"PAY-OK"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/access/verify", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusForbidden, http.StatusForbidden, http.StatusTooManyRequests}, codes)
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := Setup(zap.New(core), Deps{Results: emptyStore{}, Payments: noPayments{}})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/results/PAY-NONE", nil))

	assert.Equal(t, 1, logs.FilterMessage("Request processed").Len())
	clientErrors := logs.FilterMessage("Client error").All()
	require.Len(t, clientErrors, 1)
	fields := clientErrors[0].ContextMap()
	assert.Equal(t, "/api/results/:code", fields["route"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := Setup(zap.NewNop(), Deps{Results: emptyStore{}, Payments: noPayments{}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}
