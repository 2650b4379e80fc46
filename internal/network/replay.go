package network

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/infra/storage"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
)

const (
	defaultReplayLimit = 100
	maxReplayLimit     = 1000
)

// RecapSource builds the login recap from persisted history.
type RecapSource interface {
	GenerateRecap(ctx context.Context, saveID string, since time.Time) ([]storage.RecapEvent, error)
}

// ReplayHandler serves ledger history.
type ReplayHandler struct {
	eventLog *events.EventLog
	recap    RecapSource
	saveID   string
	logger   *logger.Logger
}

// NewReplayHandler creates a new replay handler. recap may be nil when no
// storage is configured.
func NewReplayHandler(el *events.EventLog, recap RecapSource, saveID string, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{eventLog: el, recap: recap, saveID: saveID, logger: log}
}

// ReplayEvent is an event formatted for clients.
type ReplayEvent struct {
	ID        string `json:"id"`
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Actor     string `json:"actor"`
	Target    string `json:"target,omitempty"`
	Summary   string `json:"summary"`
}

// ReplayResponse is the API response for the event history.
type ReplayResponse struct {
	TotalEvents int           `json:"total_events"`
	FilteredBy  string        `json:"filtered_by,omitempty"`
	GeneratedAt string        `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// HandleEvents returns the newest retained events, oldest first. Ticks are
// left out unless asked for by type.
// GET /api/events?type=BOX_MADE&limit=50
func (rh *ReplayHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventType := r.URL.Query().Get("type")
	limit := defaultReplayLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxReplayLimit)
	}

	replayEvents := []ReplayEvent{}
	for _, e := range rh.eventLog.Replay() {
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		if eventType == "" && e.Type == events.EventTypeUpdate {
			continue
		}
		replayEvents = append(replayEvents, toReplayEvent(e))
	}
	if len(replayEvents) > limit {
		replayEvents = replayEvents[len(replayEvents)-limit:]
	}

	jsonResponse(w, http.StatusOK, ReplayResponse{
		TotalEvents: len(replayEvents),
		FilteredBy:  eventType,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      replayEvents,
	})
}

// HandleStats returns event counts per type over the retained log.
// GET /api/events/stats
func (rh *ReplayHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := rh.eventLog.Replay()
	stats := map[string]int{"total_events": len(all)}
	for _, e := range all {
		stats[string(e.Type)]++
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"last_seq":     rh.eventLog.LastSeq(),
		"stats":        stats,
	})
}

// HandleRecap returns the persisted recap since an RFC 3339 time. Without
// since it covers the last 24 hours.
// GET /api/recap?since=2024-05-01T12:00:00Z
func (rh *ReplayHandler) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if rh.recap == nil {
		jsonError(w, "Recap unavailable without storage", http.StatusServiceUnavailable)
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			jsonError(w, "Invalid since, want RFC 3339", http.StatusBadRequest)
			return
		}
		since = t
	}

	recap, err := rh.recap.GenerateRecap(r.Context(), rh.saveID, since)
	if err != nil {
		rh.logger.Error("failed to build recap", "save_id", rh.saveID, "err", err)
		jsonError(w, "Failed to build recap", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"save_id": rh.saveID,
		"since":   since.Format(time.RFC3339),
		"recap":   recap,
	})
}

// RegisterRoutes sets up the replay API routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", rh.HandleEvents)
	mux.HandleFunc("/api/events/stats", rh.HandleStats)
	mux.HandleFunc("/api/recap", rh.HandleRecap)
}

func toReplayEvent(e events.GameEvent) ReplayEvent {
	return ReplayEvent{
		ID:        e.ID,
		Seq:       e.Seq,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Type:      string(e.Type),
		Actor:     e.ActorID,
		Target:    e.TargetID,
		Summary:   storage.Summarize(string(e.Type), e.TargetID),
	}
}
