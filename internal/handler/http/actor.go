package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/folio/internal/policy"
	"github.com/utafrali/folio/pkg/httputil"
	"github.com/utafrali/folio/pkg/middleware"
)

// actorFrom returns the authenticated caller, or the zero Actor on public
// routes.
func actorFrom(r *http.Request) policy.Actor {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return policy.Actor{}
	}
	return policy.Actor{UserID: claims.UserID, Role: claims.Role}
}

// pathID reads a UUID path parameter. It writes a 400 and returns false when
// the value is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, name))
	if !ok {
		return "", false
	}
	return id.String(), true
}
