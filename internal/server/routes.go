package server

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/walkquest/internal/session"
)

// Deps wires the HTTP layer to its collaborators.
type Deps struct {
	Quests       QuestLister
	Sessions     *Registry
	Broker       *Broker
	AdminKeyHash string
	// Health is mounted at /healthz when set.
	Health http.Handler
	SPADir string
}

func addRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	reg := d.Sessions

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("WalkQuest API", "/openapi.json", "/docs"))
	if d.Health != nil {
		r.Mount("/healthz", d.Health)
	}

	r.Get("/api/quests", handleListQuests(d.Quests))
	r.Get("/api/quests/{questID}", handleGetQuest(d.Quests))
	r.Post("/api/quests/{questID}/sessions", handleStartSession(logger, reg))

	r.Route("/api/session", func(r chi.Router) {
		// Streams authenticate with a token query parameter.
		r.Get("/events", handleEvents(reg, d.Broker))
		r.Get("/location", handleLocation(logger, reg))

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware(reg))

			r.Get("/", handleGetState())
			r.Delete("/", handleEndSession(reg))
			r.Get("/story", handleStoryLog())

			r.Post("/arrive", handleAction(simple((*session.Session).Arrive)))
			r.Post("/rescue", handleAction(simple((*session.Session).RequestRescue)))
			r.Post("/rescue/confirm", handleAction(simple((*session.Session).ConfirmRescue)))
			r.Post("/rescue/cancel", handleAction(simple((*session.Session).CancelRescue)))
			r.Post("/story/advance", handleAction(simple((*session.Session).AdvanceStory)))
			r.Post("/story/skip", handleAction(simple((*session.Session).SkipStory)))
			r.Post("/answer", handleAction(submitAnswer))
			r.Post("/hint", handleAction(simple((*session.Session).RequestHint)))
			r.Post("/continue", handleAction(simple((*session.Session).ContinuePuzzle)))
			r.Post("/replay", handleAction(simple((*session.Session).Replay)))
			r.With(adminKeyMiddleware(d.AdminKeyHash)).
				Post("/reveal", handleAction(simple((*session.Session).RevealAnswer)))

			r.Post("/save/retry", handleRetrySave())
			r.Post("/review", handleReview())
		})
	})

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
