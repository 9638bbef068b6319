package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"coinledger/internal/bulk/handler/mocks"
	"coinledger/internal/bulk/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/httputil"
	"coinledger/pkg/platform/middleware/auth"
	"coinledger/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	actor   id.UserID
	role    string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.actor = id.UserID(uuid.New())
	s.role = auth.RoleCorporate
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.router = chi.NewRouter()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(r.Context(), s.actor, s.role)))
		})
	})
	s.router.Route("/corporate", h.Register)
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decodeError(w *httptest.ResponseRecorder) httputil.ErrorResponse {
	var resp httputil.ErrorResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func (s *HandlerSuite) TestCreate() {
	s.Run("corporate caller sponsors itself", func() {
		s.service.EXPECT().Create(gomock.Any(), s.actor, models.CreateRequest{
			SponsorID:        s.actor,
			TotalAmount:      1000,
			RecipientCount:   3,
			DistributionType: models.DistributionEqual,
		}).Return(&models.BulkDonation{ID: id.BulkDonationID(uuid.New()), SponsorID: s.actor, Status: models.StatusPending}, nil)

		w := s.do(http.MethodPost, "/corporate/bulk-donations", `{"total_amount":1000,"recipient_count":3,"distribution_type":"Equal"}`)
		s.Equal(http.StatusCreated, w.Code)
	})

	s.Run("corporate caller cannot sponsor for others", func() {
		body := `{"sponsor_id":"` + uuid.NewString() + `","total_amount":1000,"recipient_count":3}`
		w := s.do(http.MethodPost, "/corporate/bulk-donations", body)
		s.Equal(http.StatusForbidden, w.Code)
	})

	s.Run("admin may name a sponsor", func() {
		s.role = auth.RoleAdmin
		defer func() { s.role = auth.RoleCorporate }()
		sponsor := id.UserID(uuid.New())
		s.service.EXPECT().Create(gomock.Any(), s.actor, models.CreateRequest{
			SponsorID:      sponsor,
			TotalAmount:    50,
			RecipientCount: 5,
		}).Return(&models.BulkDonation{SponsorID: sponsor}, nil)

		body := `{"sponsor_id":"` + sponsor.String() + `","total_amount":50,"recipient_count":5}`
		w := s.do(http.MethodPost, "/corporate/bulk-donations", body)
		s.Equal(http.StatusCreated, w.Code)
	})

	s.Run("non-positive total", func() {
		w := s.do(http.MethodPost, "/corporate/bulk-donations", `{"total_amount":0,"recipient_count":3}`)
		s.Equal(http.StatusUnprocessableEntity, w.Code)
		s.Equal(models.ReasonInvalidAmount, s.decodeError(w).Reason)
	})
}

func (s *HandlerSuite) TestProcess() {
	bulkID := id.BulkDonationID(uuid.New())
	path := "/corporate/bulk-donations/" + bulkID.String() + "/process"

	s.Run("splits the donation", func() {
		s.service.EXPECT().Get(gomock.Any(), bulkID).Return(&models.Detail{BulkDonation: models.BulkDonation{ID: bulkID, SponsorID: s.actor}}, nil)
		s.service.EXPECT().Process(gomock.Any(), s.actor, bulkID).Return(&models.Detail{
			BulkDonation: models.BulkDonation{ID: bulkID, Status: models.StatusProcessed, ActualRecipientCount: 3},
			Donations:    []models.Donation{{Amount: 334}, {Amount: 333}, {Amount: 333}},
		}, nil)

		w := s.do(http.MethodPost, path, "")
		s.Equal(http.StatusOK, w.Code)

		var detail models.Detail
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&detail))
		s.Equal(models.StatusProcessed, detail.Status)
		s.Len(detail.Donations, 3)
	})

	s.Run("insufficient recipients", func() {
		s.service.EXPECT().Get(gomock.Any(), bulkID).Return(&models.Detail{BulkDonation: models.BulkDonation{ID: bulkID, SponsorID: s.actor}}, nil)
		s.service.EXPECT().Process(gomock.Any(), s.actor, bulkID).
			Return(nil, dErrors.NewWithReason(dErrors.CodeInsufficientRecipients, models.ReasonInsufficientRecipients, "need 10 eligible recipients, found 5"))

		w := s.do(http.MethodPost, path, "")
		s.Equal(http.StatusConflict, w.Code)
		resp := s.decodeError(w)
		s.Equal(string(dErrors.CodeInsufficientRecipients), resp.Error)
		s.Equal(models.ReasonInsufficientRecipients, resp.Reason)
	})

	s.Run("other sponsor's donation is hidden", func() {
		s.service.EXPECT().Get(gomock.Any(), bulkID).Return(&models.Detail{BulkDonation: models.BulkDonation{ID: bulkID, SponsorID: id.UserID(uuid.New())}}, nil)

		w := s.do(http.MethodPost, path, "")
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("malformed id", func() {
		w := s.do(http.MethodPost, "/corporate/bulk-donations/abc/process", "")
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestGet() {
	bulkID := id.BulkDonationID(uuid.New())

	s.Run("own donation", func() {
		s.service.EXPECT().Get(gomock.Any(), bulkID).Return(&models.Detail{BulkDonation: models.BulkDonation{ID: bulkID, SponsorID: s.actor}}, nil)
		w := s.do(http.MethodGet, "/corporate/bulk-donations/"+bulkID.String(), "")
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("not found", func() {
		s.service.EXPECT().Get(gomock.Any(), bulkID).
			Return(nil, dErrors.NewWithReason(dErrors.CodeNotFound, models.ReasonBulkDonationNotFound, "bulk donation not found"))
		w := s.do(http.MethodGet, "/corporate/bulk-donations/"+bulkID.String(), "")
		s.Equal(http.StatusNotFound, w.Code)
		s.Equal(models.ReasonBulkDonationNotFound, s.decodeError(w).Reason)
	})
}
