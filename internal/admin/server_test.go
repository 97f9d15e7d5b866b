package admin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/service"
)

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) List(ctx context.Context, pendingOnly bool) ([]models.PaymentSubmission, error) {
	args := m.Called(ctx, pendingOnly)
	subs, _ := args.Get(0).([]models.PaymentSubmission)
	return subs, args.Error(1)
}

func (m *mockPayments) Approve(ctx context.Context, id string) (*models.PaymentSubmission, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*models.PaymentSubmission)
	return sub, args.Error(1)
}

func (m *mockPayments) HandleYooKassaWebhook(ctx context.Context, payload []byte) error {
	return m.Called(ctx, string(payload)).Error(0)
}

type mockCredits struct {
	mock.Mock
}

func (m *mockCredits) Credit(ctx context.Context, uid string, amount int, source string) error {
	return m.Called(ctx, uid, amount, source).Error(0)
}

func (m *mockCredits) Debit(ctx context.Context, uid string, cost int) error {
	return m.Called(ctx, uid, cost).Error(0)
}

type stubUsers struct{}

func (stubUsers) Profile(_ context.Context, uid string) (*models.UserProfile, error) {
	if uid == "ghost" {
		return nil, apperror.NotFound("user", uid)
	}
	return &models.UserProfile{UID: uid, Credits: 42}, nil
}

func (stubUsers) SetShowAds(_ context.Context, uid string, show bool) (*models.UserProfile, error) {
	return &models.UserProfile{UID: uid, ShowAds: show}, nil
}

type stubImages struct{ deleted []string }

func (s *stubImages) DeleteImage(_ context.Context, id string) error {
	if id == "missing" {
		return apperror.NotFound("image", id)
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func newTestServer(opts Options, deps Deps) *Server {
	if opts.Username == "" {
		opts.Username, opts.Password = "admin", "secret"
	}
	if deps.Users == nil {
		deps.Users = stubUsers{}
	}
	return NewServer(opts, slog.New(slog.NewTextHandler(io.Discard, nil)), deps)
}

func do(srv *Server, method, target, body string, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if authed {
		req.SetBasicAuth("admin", "secret")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestBasicAuthRequired(t *testing.T) {
	srv := newTestServer(Options{}, Deps{})

	rec := do(srv, http.MethodGet, "/payments", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "visionhub")

	req := httptest.NewRequest(http.MethodGet, "/payments", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListPayments_PendingFilter(t *testing.T) {
	payments := new(mockPayments)
	payments.On("List", mock.Anything, true).Return([]models.PaymentSubmission{{ID: "p1"}}, nil)
	payments.On("List", mock.Anything, false).Return(nil, nil)
	srv := newTestServer(Options{}, Deps{Payments: payments})

	rec := do(srv, http.MethodGet, "/payments", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"p1"`)

	rec = do(srv, http.MethodGet, "/payments?pending=false", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(srv, http.MethodGet, "/payments?pending=maybe", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payments.AssertExpectations(t)
}

func TestApprovePayment_SecondApprovalConflicts(t *testing.T) {
	payments := new(mockPayments)
	payments.On("Approve", mock.Anything, "p1").Return(&models.PaymentSubmission{ID: "p1", Approved: true, Credits: 100}, nil).Once()
	payments.On("Approve", mock.Anything, "p1").Return(nil, service.ErrPaymentAlreadyApproved).Once()
	srv := newTestServer(Options{}, Deps{Payments: payments})

	rec := do(srv, http.MethodPost, "/payments/p1/approve", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodPost, "/payments/p1/approve", "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdjustCredits(t *testing.T) {
	credits := new(mockCredits)
	credits.On("Credit", mock.Anything, "u1", 50, "admin").Return(nil)
	credits.On("Debit", mock.Anything, "u1", 10).Return(nil)
	credits.On("Debit", mock.Anything, "u1", 1000).Return(service.ErrInsufficientCredits)
	srv := newTestServer(Options{}, Deps{Credits: credits})

	rec := do(srv, http.MethodPost, "/users/u1/credits", `{"amount":50}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"credits":42`)

	rec = do(srv, http.MethodPost, "/users/u1/credits", `{"amount":-10}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodPost, "/users/u1/credits", `{"amount":-1000}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(srv, http.MethodPost, "/users/u1/credits", `{"amount":0}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	credits.AssertExpectations(t)
}

func TestAdjustCredits_UnknownUser(t *testing.T) {
	credits := new(mockCredits)
	srv := newTestServer(Options{}, Deps{Credits: credits})

	rec := do(srv, http.MethodPost, "/users/ghost/credits", `{"amount":-5}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(srv, http.MethodPost, "/users/ghost/credits", `{"amount":5}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	credits.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
	credits.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSetShowAdsAndDeleteImage(t *testing.T) {
	images := &stubImages{}
	srv := newTestServer(Options{}, Deps{Images: images})

	rec := do(srv, http.MethodPut, "/users/u1/ads", `{"showAds":false}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"showAds":false`)

	rec = do(srv, http.MethodDelete, "/images/i1", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"i1"}, images.deleted)

	rec = do(srv, http.MethodDelete, "/images/missing", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestYooKassaWebhook(t *testing.T) {
	const payload = `{"event":"payment.succeeded","object":{"id":"yk-1","status":"succeeded"}}`

	t.Run("disabled without token", func(t *testing.T) {
		srv := newTestServer(Options{}, Deps{Payments: new(mockPayments)})
		rec := do(srv, http.MethodPost, "/webhook/yookassa?token=x", payload, false)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		srv := newTestServer(Options{WebhookToken: "hook-secret"}, Deps{Payments: new(mockPayments)})
		rec := do(srv, http.MethodPost, "/webhook/yookassa?token=nope", payload, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepted", func(t *testing.T) {
		payments := new(mockPayments)
		payments.On("HandleYooKassaWebhook", mock.Anything, payload).Return(nil).Once()
		srv := newTestServer(Options{WebhookToken: "hook-secret"}, Deps{Payments: payments})

		rec := do(srv, http.MethodPost, "/webhook/yookassa?token=hook-secret", payload, false)
		assert.Equal(t, http.StatusOK, rec.Code)
		payments.AssertExpectations(t)
	})

	t.Run("unknown reference", func(t *testing.T) {
		payments := new(mockPayments)
		payments.On("HandleYooKassaWebhook", mock.Anything, payload).Return(apperror.NotFound("payment submission", "yk-1"))
		srv := newTestServer(Options{WebhookToken: "hook-secret"}, Deps{Payments: payments})

		rec := do(srv, http.MethodPost, "/webhook/yookassa?token=hook-secret", payload, false)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMetricsBehindAuth(t *testing.T) {
	srv := newTestServer(Options{}, Deps{})

	assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodGet, "/metrics", "", false).Code)

	rec := do(srv, http.MethodGet, "/metrics", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "visionhub_gallery_streams")
}
