package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
)

const idempotencyDir = "idempotency"

// IdempotencyRepository stores one document per (key, appID, triggerKey)
// tuple. The filename is a digest so client keys never hit the filesystem
// namespace directly.
type IdempotencyRepository struct {
	persistence *Persistence
}

func idempotencyName(key, appID, triggerKey string) string {
	sum := sha256.Sum256([]byte(key + "\x00" + appID + "\x00" + triggerKey))

	return hex.EncodeToString(sum[:])
}

func (r *IdempotencyRepository) IdempotencyRecord(_ context.Context, key, appID, triggerKey string) (*models.IdempotencyRecord, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var record models.IdempotencyRecord

	name := idempotencyName(key, appID, triggerKey)
	if err := r.persistence.read(idempotencyDir, name, &record, persistence.ErrIdempotencyRecordNotFound); err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *IdempotencyRepository) SaveIdempotencyRecord(_ context.Context, record *models.IdempotencyRecord) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	name := idempotencyName(record.Key, record.AppID, record.TriggerKey)
	if err := r.persistence.write(idempotencyDir, name, record); err != nil {
		return persistence.NewStorageError("SaveIdempotencyRecord", record.Key, err)
	}

	return nil
}
