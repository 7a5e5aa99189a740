// Package sync implements the attendance synchronization core: the queue and
// archive manager, the push and pull workers, and the master-list reconciler.
package sync

import (
	"encoding/json"

	apperrors "github.com/rollcallhq/rollcall/backend/internal/errors"
	"github.com/rollcallhq/rollcall/backend/internal/models"
)

// PayloadItem is one committed attendance decision as serialized into sync
// job payloads and queue archive snapshots. The shape must round-trip
// exactly: archives written by one version are restored by another.
type PayloadItem struct {
	ID    string                 `json:"id"`
	State models.AttendanceState `json:"state"`
	Time  int64                  `json:"time"`
}

// EncodePayload serializes payload items to their wire form.
func EncodePayload(items []PayloadItem) (json.RawMessage, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPayloadCorrupt, "failed to encode payload", err)
	}
	return data, nil
}

// DecodePayload parses a stored payload back into items.
func DecodePayload(data []byte) ([]PayloadItem, error) {
	var items []PayloadItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPayloadCorrupt, "failed to decode payload", err)
	}
	return items, nil
}
