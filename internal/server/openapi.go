package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/walkquest/internal/session"
	"github.com/playperu/walkquest/internal/store"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps dependency name to its status.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

type opDoc struct {
	method, path, summary, description string
	req                                any
	resp                               any
	errors                             []int
}

const sessionAuth = " Requires Bearer token."

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "WalkQuest API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Gameplay API for location-based walking quests.")

	action := func(path, summary, description string, req any, errs ...int) opDoc {
		return opDoc{
			method: http.MethodPost, path: path, summary: summary,
			description: description + sessionAuth, req: req, resp: ActionResponse{},
			errors: append([]int{http.StatusUnauthorized}, errs...),
		}
	}

	ops := []opDoc{
		{
			method: http.MethodGet, path: "/healthz", summary: "Health check",
			description: "Returns the health status of backend dependencies.",
			resp:        HealthResponse{}, errors: []int{http.StatusServiceUnavailable},
		},
		{
			method: http.MethodGet, path: "/api/quests", summary: "List quests",
			description: "Returns every published quest with its spot count.",
			resp:        []store.QuestSummary{},
		},
		{
			method: http.MethodGet, path: "/api/quests/{questID}", summary: "Get quest",
			description: "Returns a quest and its spots. Answers and hints are not included.",
			resp:        QuestDetail{}, errors: []int{http.StatusNotFound},
		},
		{
			method: http.MethodPost, path: "/api/quests/{questID}/sessions", summary: "Start or resume a session",
			description: "Opens a session for the player from stored progress, or returns the live one. Returns a session token.",
			req:         StartSessionRequest{}, resp: StartSessionResponse{},
			errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
		},
		{
			method: http.MethodGet, path: "/api/session", summary: "Get session state",
			description: "Returns the current session view." + sessionAuth,
			resp:        session.View{}, errors: []int{http.StatusUnauthorized},
		},
		{
			method: http.MethodDelete, path: "/api/session", summary: "End session",
			description: "Disposes the session, stops location tracking, and writes pending progress." + sessionAuth,
			errors:      []int{http.StatusUnauthorized},
		},
		{
			method: http.MethodGet, path: "/api/session/story", summary: "Story log",
			description: "Returns every story sequence shown so far, oldest first." + sessionAuth,
			resp:        StoryLogResponse{}, errors: []int{http.StatusUnauthorized},
		},
		action("/api/session/arrive", "Confirm arrival",
			"Arrives when the last location sample is near the spot, or when the spot has no geofence. Otherwise counts a failed attempt.", nil),
		action("/api/session/rescue", "Request rescue",
			"Offers manual arrival once location is unreliable. Must be confirmed.", nil, http.StatusConflict),
		action("/api/session/rescue/confirm", "Confirm rescue", "Self-declares arrival after a rescue request.", nil, http.StatusConflict),
		action("/api/session/rescue/cancel", "Cancel rescue", "Withdraws a pending rescue request.", nil),
		action("/api/session/story/advance", "Advance story", "Reveals the next story beat.", nil, http.StatusConflict),
		action("/api/session/story/skip", "Skip story", "Skips the rest of the current story.", nil, http.StatusConflict),
		action("/api/session/answer", "Submit answer", "Judges an answer for the current puzzle.",
			AnswerRequest{}, http.StatusBadRequest, http.StatusConflict),
		action("/api/session/hint", "Reveal hint", "Reveals the next hint in order.", nil, http.StatusConflict),
		action("/api/session/continue", "Continue", "Moves a solved puzzle on to its resolution story.", nil),
		action("/api/session/reveal", "Reveal answer",
			"Developer escape that reveals the answer and moves on. Requires X-Admin-Key.", nil, http.StatusForbidden, http.StatusConflict),
		action("/api/session/replay", "Replay quest", "Restarts a completed quest from the first spot.", nil, http.StatusConflict),
		{
			method: http.MethodPost, path: "/api/session/save/retry", summary: "Retry save",
			description: "Writes the current progress again after a failed save." + sessionAuth,
			resp:        session.View{}, errors: []int{http.StatusUnauthorized, http.StatusServiceUnavailable},
		},
		{
			method: http.MethodPost, path: "/api/session/review", summary: "Submit review",
			description: "Rates a completed quest from 1 to 5." + sessionAuth,
			req:         ReviewRequest{},
			errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusConflict},
		},
	}

	for _, op := range ops {
		oc, _ := r.NewOperationContext(op.method, op.path)
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		if op.resp != nil {
			oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(http.StatusOK))
		} else {
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
		}
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	// GET /api/session/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/session/events")
	getEvents.SetSummary("SSE notice stream")
	getEvents.SetDescription("Server-Sent Events stream of session notices (save failures, rescue offers, completion). Pass token as query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/session/location
	getLocation, _ := r.NewOperationContext(http.MethodGet, "/api/session/location")
	getLocation.SetSummary("Location stream")
	getLocation.SetDescription("Upgrades to a WebSocket that accepts {lat, lng, accuracy, error} samples. Pass token as query parameter.")
	getLocation.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getLocation)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
