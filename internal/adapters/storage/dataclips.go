package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
	"github.com/eleven-am/foreman/internal/xjson"
)

// Dataclips implements ports.DataclipStore on any StoragePort. Clips
// are written once and only ever read afterwards; runs reference them
// by id instead of copying the payload.
type Dataclips struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

func NewDataclips(storage ports.StoragePort, logger *slog.Logger) *Dataclips {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dataclips{
		storage: storage,
		logger:  logger.With("component", "dataclips"),
	}
}

func (d *Dataclips) Get(ctx context.Context, id string) (*domain.Dataclip, error) {
	value, _, exists, err := d.storage.Get(domain.DataclipKey(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewNotFoundError("dataclip", id)
	}

	var clip domain.Dataclip
	if err := xjson.Unmarshal(value, &clip); err != nil {
		return nil, err
	}
	return &clip, nil
}

func (d *Dataclips) Insert(ctx context.Context, body xjson.RawMessage, projectID string, kind domain.DataclipKind) (*domain.Dataclip, error) {
	clip := &domain.Dataclip{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		Kind:       kind,
		Body:       body,
		InsertedAt: time.Now(),
	}

	value, err := xjson.Marshal(clip)
	if err != nil {
		return nil, err
	}
	if err := d.storage.Put(domain.DataclipKey(clip.ID), value, 0); err != nil {
		return nil, err
	}

	d.logger.Debug("dataclip inserted", "dataclip_id", clip.ID, "kind", kind)
	return clip, nil
}
