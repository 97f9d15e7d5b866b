package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveGeneration(t *testing.T) {
	before := testutil.CollectAndCount(GenerationLatency)

	done := ObserveGeneration("image")
	var err error
	done(&err)

	failed := ObserveGeneration("video")
	err = errors.New("boom")
	failed(&err)

	assert.Equal(t, before+2, testutil.CollectAndCount(GenerationLatency))
}

func TestHandlerExposesCollectors(t *testing.T) {
	CreditsDebited.Add(10)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "visionhub_credits_debited_total")
}
