package handler

import (
	"net/http"

	"tohomc/internal/api/middleware"
	"tohomc/internal/common"
)

// currentUsername reads the authenticated caller, answering 401 when the
// route was mounted without the Authenticator.
func currentUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return "", false
	}
	return username, true
}
