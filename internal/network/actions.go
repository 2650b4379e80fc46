package network

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
)

// ActionsHandler is the REST surface of the player action API.
type ActionsHandler struct {
	studio Studio
	logger *logger.Logger
}

// NewActionsHandler creates a new action handler.
func NewActionsHandler(studio Studio, log *logger.Logger) *ActionsHandler {
	return &ActionsHandler{studio: studio, logger: log}
}

// SelectRequest is the payload for switching the active task.
type SelectRequest struct {
	Stage   string `json:"stage"`
	ActorID string `json:"actor_id"`
}

// MakeBoxRequest is the payload for a box click.
type MakeBoxRequest struct {
	ActorID string `json:"actor_id"`
}

// BuyRequest is the payload for an upgrade purchase.
type BuyRequest struct {
	Upgrade string `json:"upgrade"`
	ActorID string `json:"actor_id"`
}

// HandleState returns the current snapshot.
// GET /api/state
func (ah *ActionsHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jsonResponse(w, http.StatusOK, ah.studio.Snapshot())
}

// HandleSelect queues a task switch.
// POST /api/games/select
func (ah *ActionsHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Stage == "" {
		jsonError(w, "Missing stage", http.StatusBadRequest)
		return
	}

	ah.accept(w, PlayerAction{Type: ActionSelectTask, Target: req.Stage, ActorID: actorOr(req.ActorID)})
}

// HandleMakeBox queues a box click. The body is optional.
// POST /api/boxes/make
func (ah *ActionsHandler) HandleMakeBox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MakeBoxRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	ah.accept(w, PlayerAction{Type: ActionMakeBox, ActorID: actorOr(req.ActorID)})
}

// HandleBuy queues an upgrade purchase.
// POST /api/boxes/buy
func (ah *ActionsHandler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Upgrade == "" {
		jsonError(w, "Missing upgrade", http.StatusBadRequest)
		return
	}

	ah.accept(w, PlayerAction{Type: ActionBuyUpgrade, Target: req.Upgrade, ActorID: actorOr(req.ActorID)})
}

// RegisterRoutes sets up the action API routes.
func (ah *ActionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", ah.HandleState)
	mux.HandleFunc("/api/games/select", ah.HandleSelect)
	mux.HandleFunc("/api/boxes/make", ah.HandleMakeBox)
	mux.HandleFunc("/api/boxes/buy", ah.HandleBuy)
}

func (ah *ActionsHandler) accept(w http.ResponseWriter, action PlayerAction) {
	if err := applyAction(ah.studio, action); err != nil {
		ah.logger.Warn("rest action rejected", "action", action.Type, "target", action.Target, "err", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	ah.logger.Event("PLAYER_ACTION_"+action.Type, action.ActorID, action.Target)
	jsonResponse(w, http.StatusAccepted, map[string]interface{}{
		"accepted": true,
		"action":   action,
	})
}

func actorOr(id string) string {
	if id == "" {
		return "rest"
	}
	return id
}

// statusFor maps action errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, games.ErrUnknownStage), errors.Is(err, boxes.ErrUnknownUpgrade):
		return http.StatusNotFound
	case errors.Is(err, games.ErrIneligible),
		errors.Is(err, boxes.ErrLocked),
		errors.Is(err, boxes.ErrAlreadyBought),
		errors.Is(err, boxes.ErrInsufficientBoxes):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// jsonResponse sends data with the given status.
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
