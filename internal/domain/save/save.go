// Package save defines the persisted shape of a player's game and its
// versioning hook.
// This package is PURE and must NOT import any infrastructure packages.
package save

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
)

// CurrentVersion is stamped on every save written by this build.
const CurrentVersion = "0.1"

// Save is everything that survives a restart.
type Save struct {
	Version string      `json:"version"`
	SavedAt time.Time   `json:"saved_at"`
	Tick    int64       `json:"tick"` // ticks applied when saved
	Games   games.State `json:"games"`
	Boxes   boxes.State `json:"boxes"`
}

// FixOldSave upgrades a save written by a different version to the current
// structure. No structural changes exist yet, so it does nothing.
func FixOldSave(oldVersion string, s *Save) {}

// Encode serializes a save.
func Encode(s Save) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode save: %w", err)
	}
	return b, nil
}

// Decode parses a save and migrates it to CurrentVersion.
func Decode(data []byte) (Save, error) {
	var s Save
	if err := json.Unmarshal(data, &s); err != nil {
		return Save{}, fmt.Errorf("failed to decode save: %w", err)
	}
	if s.Version != CurrentVersion {
		FixOldSave(s.Version, &s)
		s.Version = CurrentVersion
	}
	return s, nil
}
