package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/middleware"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok || res.User == nil {
		middleware.WriteError(w, goAuthz.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, res.User)
}

func (a *api) updateMe(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok || res.User == nil {
		middleware.WriteError(w, goAuthz.ErrUnauthenticated)
		return
	}

	var upd goAuthz.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		middleware.WriteError(w, err)
		return
	}

	user, err := a.engine.UpdateProfile(r.Context(), res.User.ID, upd)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// listUsers pages with ?skip=&limit=; offset is accepted as an alias of skip.
func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skipRaw := q.Get("skip")
	if skipRaw == "" {
		skipRaw = q.Get("offset")
	}

	skip, err := queryInt(skipRaw, 0)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	limit, err := queryInt(q.Get("limit"), defaultPageLimit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	users, err := a.engine.ListUsers(r.Context(), goAuthz.ListOptions{Offset: skip, Limit: limit})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if users == nil {
		users = []goAuthz.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *api) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.engine.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *api) activateUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.engine.ActivateUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *api) deactivateUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.engine.DeactivateUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, goAuthz.ErrInvalidInput
	}
	return n, nil
}
