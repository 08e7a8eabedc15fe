package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gamevault/internal/server/models"
)

// parseGameQuery reads list parameters. Unparseable page or limit values
// are left at zero and replaced by defaults downstream.
func parseGameQuery(req *http.Request) models.GameQuery {
	v := req.URL.Query()
	page, _ := strconv.Atoi(v.Get("page"))
	limit, _ := strconv.Atoi(v.Get("limit"))
	return models.GameQuery{
		Platform: v.Get("platform"),
		Status:   v.Get("status"),
		Q:        v.Get("q"),
		Page:     page,
		Limit:    limit,
	}
}

func (r *Router) handleListGames(w http.ResponseWriter, req *http.Request) {
	list, err := r.services.Games.List(req.Context(), AccountID(req.Context()), parseGameQuery(req))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (r *Router) handleCreateGame(w http.ResponseWriter, req *http.Request) {
	var in models.GameInput
	if !r.decodeJSON(w, req, &in) {
		return
	}
	g, err := r.services.Games.Create(req.Context(), AccountID(req.Context()), in)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (r *Router) handleUpdateGame(w http.ResponseWriter, req *http.Request) {
	var in models.GameInput
	if !r.decodeJSON(w, req, &in) {
		return
	}
	g, err := r.services.Games.Update(req.Context(), AccountID(req.Context()), chi.URLParam(req, "id"), in)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (r *Router) handleDeleteGame(w http.ResponseWriter, req *http.Request) {
	if err := r.services.Games.Delete(req.Context(), AccountID(req.Context()), chi.URLParam(req, "id")); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
