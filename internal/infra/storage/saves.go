package storage

import (
	"context"
	"fmt"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/save"
)

// WriteSave encodes s and stores it in the slot.
func WriteSave(ctx context.Context, repo SaveRepository, saveID string, s save.Save) error {
	data, err := save.Encode(s)
	if err != nil {
		return err
	}
	return repo.Upsert(ctx, SaveRecord{
		SaveID:    saveID,
		Version:   s.Version,
		Data:      data,
		UpdatedAt: s.SavedAt,
	})
}

// ReadSave loads and migrates the slot. It returns nil, nil for an empty slot.
func ReadSave(ctx context.Context, repo SaveRepository, saveID string) (*save.Save, error) {
	rec, err := repo.Get(ctx, saveID)
	if err != nil {
		return nil, fmt.Errorf("failed to read save %s: %w", saveID, err)
	}
	if rec == nil {
		return nil, nil
	}
	s, err := save.Decode(rec.Data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
