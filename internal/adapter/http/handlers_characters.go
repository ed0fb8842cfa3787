package adapthttp

import (
	"encoding/json"
	"iter"
	"net/http"

	"github.com/go-chi/chi/v5"

	"textrpg/internal/domain"
)

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OwnerID string        `json:"ownerId"`
		Name    string        `json:"name"`
		Stats   *domain.Stats `json:"stats"`
	}
	if err := parseJSON(r, &body); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	c, err := s.mut.CreateOwned(r.Context(), body.OwnerID, body.Name, body.Stats)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/characters/"+c.ID)
	writeJSON(w, http.StatusCreated, toResponse(c))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.query.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (s *Server) handleGetByName(w http.ResponseWriter, r *http.Request) {
	c, err := s.query.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.query.Count(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name *string `json:"name"`
	}
	if err := parseJSON(r, &body); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	c, err := s.mut.Update(r.Context(), chi.URLParam(r, "id"), body.Name)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

// handleDelete removes a character. With ownerId set, only that owner's
// character is removed.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var err error
	if q := r.URL.Query(); q.Has("ownerId") {
		err = s.mut.DeleteOwned(r.Context(), id, q.Get("ownerId"))
	} else {
		err = s.mut.Delete(r.Context(), id)
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExperience(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := parseJSON(r, &body); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	c, err := s.mut.GainExperience(r.Context(), chi.URLParam(r, "id"), body.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (s *Server) handleDamage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount int `json:"amount"`
	}
	if err := parseJSON(r, &body); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	c, err := s.mut.ApplyDamage(r.Context(), chi.URLParam(r, "id"), body.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (s *Server) handleHeal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount int `json:"amount"`
	}
	if err := parseJSON(r, &body); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	c, err := s.mut.Heal(r.Context(), chi.URLParam(r, "id"), body.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

// handleList streams a JSON array. Without filters it lists every
// character; ownerId selects one owner's characters and minLevel and/or
// maxLevel filter by level.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	seq := s.query.List(r.Context())
	switch {
	case q.Has("ownerId"):
		var err error
		seq, err = s.query.ListByOwner(r.Context(), q.Get("ownerId"))
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
	case q.Has("minLevel") || q.Has("maxLevel"):
		minLevel, err := intQuery(r, "minLevel", domain.BaseLevel)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		maxLevel, err := intQuery(r, "maxLevel", domain.MaxLevel)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		seq, err = s.query.ListByLevel(r.Context(), minLevel, maxLevel)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	s.streamArray(w, r, seq)
}

// streamArray writes items as they arrive. An error before the first item
// yields a normal error response; a later error truncates the array.
func (s *Server) streamArray(w http.ResponseWriter, r *http.Request, seq iter.Seq2[domain.Character, error]) {
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	started := false
	begin := func() {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("["))
		started = true
	}

	for c, err := range seq {
		if err != nil {
			if !started {
				s.writeAppError(w, r, err)
				return
			}
			s.logger.ErrorContext(r.Context(), "list stream aborted", "err", err)
			break
		}
		if !started {
			begin()
		} else {
			_, _ = w.Write([]byte(","))
		}
		if err := enc.Encode(toResponse(c)); err != nil {
			return
		}
		_ = rc.Flush()
	}
	if !started {
		begin()
	}
	_, _ = w.Write([]byte("]"))
}
