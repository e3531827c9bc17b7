package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"tohomc/internal/app/service"
	"tohomc/internal/common"
	"tohomc/internal/live"
	"tohomc/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	pongWait       = 60 * time.Second
	maxMessageSize = 512
)

type StandingsHandler struct {
	standingsService *service.StandingsService
	hub              *live.Hub
	upgrader         websocket.Upgrader
}

// NewStandingsHandler builds the handler. Browsers may open the live feed
// from the API's own host or from one of allowedOrigins.
func NewStandingsHandler(ss *service.StandingsService, hub *live.Hub, allowedOrigins []string) *StandingsHandler {
	return &StandingsHandler{
		standingsService: ss,
		hub:              hub,
		upgrader:         websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients), same-host origins and the allow-list.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[normalizeOrigin(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[normalizeOrigin(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

func (h *StandingsHandler) RegisterContestRoutes(r chi.Router) {
	r.Get("/standings", h.getStandings)
}

// RegisterLiveRoutes mounts the WebSocket feed. It must stay outside any
// request timeout middleware.
func (h *StandingsHandler) RegisterLiveRoutes(r chi.Router) {
	r.Get("/standings/live", h.liveStandings)
}

func (h *StandingsHandler) getStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.standingsService.Get(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, standings)
}

// liveStandings sends the current standings on connect, then every update
// produced by new submissions until the client goes away.
func (h *StandingsHandler) liveStandings(w http.ResponseWriter, r *http.Request) {
	if !h.upgrader.CheckOrigin(r) {
		common.RespondWithError(w, http.StatusForbidden, "Origin not allowed")
		return
	}
	contestID := chi.URLParam(r, "contestID")
	standings, err := h.standingsService.Get(r.Context(), contestID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn.Printf("websocket upgrade error: %v", err)
		return
	}

	h.hub.AddConnection(contestID, conn)
	defer h.hub.RemoveConnection(contestID, conn)
	h.hub.SendTo(contestID, conn, live.Message{Type: live.MessageTypeStandings, Data: standings})

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
