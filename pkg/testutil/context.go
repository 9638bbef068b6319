package testutil

import (
	"net/http"

	id "coinledger/pkg/domain"
	"coinledger/pkg/requestcontext"
)

// WithActor puts an authenticated actor on the request, as the auth
// middleware would after validating a token.
func WithActor(req *http.Request, actorID id.UserID, role string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actorID, role))
}
