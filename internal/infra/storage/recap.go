package storage

import (
	"context"
	"fmt"
	"time"
)

// Recapper turns the persisted ledger into the "while you were away" list
// shown at login.
type Recapper struct {
	eventRepo EventRepository
}

// NewRecapper creates a new recap builder.
func NewRecapper(eventRepo EventRepository) *Recapper {
	return &Recapper{eventRepo: eventRepo}
}

// RecapEvent is a simplified event for the recap screen.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"` // Human-readable description
	Count     int    `json:"count"`
}

// GenerateRecap lists what happened to a save since the given time. Runs of
// consecutive box clicks or autosaves collapse into a single entry.
func (r *Recapper) GenerateRecap(ctx context.Context, saveID string, since time.Time) ([]RecapEvent, error) {
	all, err := r.eventRepo.GetSince(ctx, saveID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for recap: %w", err)
	}

	recap := []RecapEvent{}
	for _, e := range all {
		if e.EventType == "UPDATE" {
			continue
		}
		if n := len(recap); n > 0 && collapses(e.EventType) && recap[n-1].EventType == e.EventType {
			recap[n-1].Count++
			recap[n-1].Summary = summarizeRun(e.EventType, recap[n-1].Count)
			continue
		}

		recap = append(recap, RecapEvent{
			Timestamp: e.Timestamp.Format("2006-01-02 15:04:05"),
			EventType: e.EventType,
			Summary:   Summarize(e.EventType, e.TargetID),
			Count:     1,
		})
	}

	return recap, nil
}

func collapses(eventType string) bool {
	return eventType == "BOX_MADE" || eventType == "GAME_SAVED"
}

func summarizeRun(eventType string, count int) string {
	if eventType == "BOX_MADE" {
		return fmt.Sprintf("Made %d boxes.", count)
	}
	return fmt.Sprintf("Game saved %d times.", count)
}

// Summarize creates a human-readable summary of one ledger entry.
func Summarize(eventType, targetID string) string {
	switch eventType {
	case "UPDATE":
		return "Time passed in the studio."
	case "TASK_SELECTED":
		return fmt.Sprintf("Started working on %s.", targetID)
	case "BOX_MADE":
		return "Made a box."
	case "UPGRADE_BOUGHT":
		return fmt.Sprintf("Bought the %s upgrade.", targetID)
	case "GAME_SAVED":
		return "Game saved."
	case "GAME_LOADED":
		return "Game loaded."
	default:
		return "Something happened in the studio."
	}
}
