package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/playperu/walkquest/internal/puzzle"
	"github.com/playperu/walkquest/internal/session"
	"github.com/playperu/walkquest/internal/story"
)

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// ActionResponse is returned by every gameplay action.
type ActionResponse struct {
	Applied bool            `json:"applied"`
	Arrived bool            `json:"arrived,omitempty"`
	Verdict *puzzle.Verdict `json:"verdict,omitempty"`
	Hint    string          `json:"hint,omitempty"`
	Answer  string          `json:"answer,omitempty"`
	State   session.View    `json:"state"`
}

type StoryLogResponse struct {
	Entries []story.Entry `json:"entries"`
}

type action func(s *session.Session, w http.ResponseWriter, r *http.Request) (session.Outcome, error)

// simple wraps a Session method that takes no input.
func simple(f func(*session.Session) (session.Outcome, error)) action {
	return func(s *session.Session, _ http.ResponseWriter, _ *http.Request) (session.Outcome, error) { return f(s) }
}

func handleAction(do action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls := liveFrom(r)
		out, err := do(ls.sess, w, r)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ActionResponse{
			Applied: out.Applied,
			Arrived: out.Arrived,
			Verdict: out.Verdict,
			Hint:    out.Hint,
			Answer:  out.Answer,
			State:   out.View,
		})
	}
}

var errBadRequest = errors.New("bad request")

func submitAnswer(s *session.Session, w http.ResponseWriter, r *http.Request) (session.Outcome, error) {
	var req AnswerRequest
	if err := readJSON(w, r, &req); err != nil {
		return session.Outcome{}, errBadRequest
	}
	if strings.TrimSpace(req.Answer) == "" {
		return session.Outcome{}, errBadRequest
	}
	return s.SubmitAnswer(req.Answer)
}

func handleGetState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, liveFrom(r).sess.View())
	}
}

func handleStoryLog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, StoryLogResponse{Entries: liveFrom(r).sess.StoryLog()})
	}
}

func handleRetrySave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := liveFrom(r).sess
		if err := s.RetrySave(); err != nil {
			writeSessionError(w, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "progress could not be saved")
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

func handleReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReviewRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := liveFrom(r).sess.SubmitReview(r.Context(), req.Rating, strings.TrimSpace(req.Comment)); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleEndSession(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Close(liveFrom(r).token); err != nil {
			writeError(w, http.StatusNotFound, "session already closed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, "answer is required")
	case errors.Is(err, session.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, session.ErrReviewsUnsupported):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, session.ErrWrongMode),
		errors.Is(err, session.ErrRescueUnavailable),
		errors.Is(err, session.ErrNoRescuePending),
		errors.Is(err, session.ErrNoMoreHints),
		errors.Is(err, session.ErrNotCompleted),
		errors.Is(err, puzzle.ErrClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
