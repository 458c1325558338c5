package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoSnapshot は履歴にスナップショットが含まれないことを表す。
var ErrNoSnapshot = errors.New("api: no snapshot in history entry")

// DecodeSnapshot は履歴のOldData/NewDataを指定された型にデシリアライズする。
func DecodeSnapshot[T any](raw string) (*T, error) {
	if raw == "" {
		return nil, ErrNoSnapshot
	}
	var data T
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("スナップショットのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}

// Before は変更前のリソースを返す。
func (h *ResourceHistory) Before() (*Resource, error) {
	return DecodeSnapshot[Resource](h.OldData)
}

// After は変更後のリソースを返す。
func (h *ResourceHistory) After() (*Resource, error) {
	return DecodeSnapshot[Resource](h.NewData)
}
