package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"coinledger/internal/ratelimit/models"
	"coinledger/internal/ratelimit/store"
	id "coinledger/pkg/domain"
	"coinledger/pkg/requestcontext"
	"coinledger/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, models.Limit) (models.Result, error) {
	return models.Result{}, errors.New("redis: connection refused")
}

type MiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
	next   http.Handler
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.next = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *MiddlewareSuite) request(actor id.UserID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/god-mode/users/x/balance", nil)
	return testutil.WithActor(req, actor, "csc_council")
}

func (s *MiddlewareSuite) TestQuotaIsPerActor() {
	m := New(store.NewInMemory(), map[models.Class]models.Limit{
		models.ClassGodMode: {Requests: 2, Window: time.Minute},
	}, s.logger)
	h := m.Limit(models.ClassGodMode)(s.next)
	alice, bob := id.UserID(uuid.New()), id.UserID(uuid.New())

	s.Equal(http.StatusNoContent, testutil.DoRequest(h, s.request(alice)).Code)
	rr := testutil.DoRequest(h, s.request(alice))
	s.Equal(http.StatusNoContent, rr.Code)
	s.Equal("0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = testutil.DoRequest(h, s.request(alice))
	testutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)
	s.NotEmpty(rr.Header().Get("Retry-After"))
	s.Contains(rr.Body.String(), "rate_limited")

	s.Equal(http.StatusNoContent, testutil.DoRequest(h, s.request(bob)).Code)
}

func (s *MiddlewareSuite) TestAnonymousCallersShareIPBucket() {
	m := New(store.NewInMemory(), map[models.Class]models.Limit{
		models.ClassCorporate: {Requests: 1, Window: time.Minute},
	}, s.logger)
	h := m.Limit(models.ClassCorporate)(s.next)

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/corporate/bulk-donations/x", nil)
		return r.WithContext(requestcontext.WithClientMetadata(r.Context(), "10.0.0.7", "curl/8", "curl"))
	}
	s.Equal(http.StatusNoContent, testutil.DoRequest(h, req()).Code)
	s.Equal(http.StatusTooManyRequests, testutil.DoRequest(h, req()).Code)
}

func (s *MiddlewareSuite) TestUnconfiguredClassAndDisabledPassThrough() {
	m := New(store.NewInMemory(), map[models.Class]models.Limit{
		models.ClassGodMode: {Requests: 1, Window: time.Minute},
	}, s.logger)
	h := m.Limit(models.ClassCoinOps)(s.next)
	actor := id.UserID(uuid.New())
	for range 3 {
		s.Equal(http.StatusNoContent, testutil.DoRequest(h, s.request(actor)).Code)
	}

	off := New(store.NewInMemory(), map[models.Class]models.Limit{
		models.ClassGodMode: {Requests: 1, Window: time.Minute},
	}, s.logger, WithDisabled(true))
	h = off.Limit(models.ClassGodMode)(s.next)
	for range 3 {
		s.Equal(http.StatusNoContent, testutil.DoRequest(h, s.request(actor)).Code)
	}
}

func (s *MiddlewareSuite) TestStoreFailureFailsOpen() {
	m := New(failingStore{}, map[models.Class]models.Limit{
		models.ClassGodMode: models.PerMinute(1),
	}, s.logger)
	h := m.Limit(models.ClassGodMode)(s.next)

	s.Equal(http.StatusNoContent, testutil.DoRequest(h, s.request(id.UserID(uuid.New()))).Code)
}
