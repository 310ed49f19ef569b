package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// LoadJSON decodes the snapshot kept under key into v. It reports false when
// the key is absent. A snapshot that does not decode is deleted and reported
// as absent, so callers start from an empty state.
func LoadJSON(ctx context.Context, s Storage, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s failed: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		if errDel := s.Delete(ctx, key); errDel != nil {
			return false, fmt.Errorf("discard malformed %s failed: %w", key, errDel)
		}
		return false, nil
	}
	return true, nil
}

// SaveJSON overwrites the snapshot under key with v.
func SaveJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s failed: %w", key, err)
	}
	return nil
}
