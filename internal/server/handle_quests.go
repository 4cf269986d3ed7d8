package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/walkquest/internal/quest"
	"github.com/playperu/walkquest/internal/session"
	"github.com/playperu/walkquest/internal/store"
)

// QuestLister is the read side of the quest store used by the HTTP layer.
type QuestLister interface {
	quest.Catalog
	ListQuests(ctx context.Context) ([]store.QuestSummary, error)
}

// QuestDetail is the public view of a quest. Answers and hints stay
// server-side.
type QuestDetail struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	AreaName string       `json:"areaName"`
	Spots    []SpotDetail `json:"spots"`
}

type SpotDetail struct {
	ID         string   `json:"id"`
	OrderIndex int      `json:"orderIndex"`
	Name       string   `json:"name"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	HasPuzzle  bool     `json:"hasPuzzle"`
}

type StartSessionRequest struct {
	PlayerID  string `json:"playerId"`
	ScoreMode bool   `json:"scoreMode"`
}

type StartSessionResponse struct {
	Token string       `json:"token"`
	State session.View `json:"state"`
}

func handleListQuests(quests QuestLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := quests.ListQuests(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetQuest(quests QuestLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := quests.Quest(r.Context(), chi.URLParam(r, "questID"))
		if errors.Is(err, quest.ErrNotFound) {
			writeError(w, http.StatusNotFound, "quest not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := QuestDetail{ID: q.ID, Title: q.Title, AreaName: q.AreaName, Spots: []SpotDetail{}}
		for _, sp := range q.Spots {
			resp.Spots = append(resp.Spots, SpotDetail{
				ID:         sp.ID,
				OrderIndex: sp.OrderIndex,
				Name:       sp.Name,
				Lat:        sp.Lat,
				Lng:        sp.Lng,
				HasPuzzle:  !sp.Puzzle.Empty(),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleStartSession(logger *slog.Logger, reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartSessionRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.PlayerID = strings.TrimSpace(req.PlayerID)
		if req.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}

		ls, err := reg.Open(r.Context(), req.PlayerID, chi.URLParam(r, "questID"), req.ScoreMode)
		switch {
		case errors.Is(err, quest.ErrNotFound):
			writeError(w, http.StatusNotFound, "quest not found")
			return
		case errors.Is(err, quest.ErrNoSpots):
			writeError(w, http.StatusConflict, "quest has no spots")
			return
		case err != nil:
			logger.Error("opening session failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, StartSessionResponse{Token: ls.token, State: ls.sess.View()})
	}
}
