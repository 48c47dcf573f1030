package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linkupdev/linkup-go/internal/pkg/archive"
)

// Archiving decorates any StringStore and asynchronously mirrors every Put
// to an S3-compatible bucket for out-of-band session-history audit. It
// never blocks or fails the request path: archive errors are logged, not
// propagated.
type Archiving struct {
	StringStore
	uploader *archive.Uploader
	logger   *zap.Logger
}

// NewArchiving wraps inner with an S3 audit mirror.
func NewArchiving(inner StringStore, uploader *archive.Uploader, logger *zap.Logger) *Archiving {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiving{StringStore: inner, uploader: uploader, logger: logger}
}

func (a *Archiving) Put(ctx context.Context, key, value string) error {
	if err := a.StringStore.Put(ctx, key, value); err != nil {
		return err
	}

	go a.mirror(key, value)
	return nil
}

func (a *Archiving) mirror(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	objectKey := fmt.Sprintf("sessions/%s/%d.json", key, time.Now().UnixNano())
	if _, err := a.uploader.Upload(ctx, objectKey, []byte(value), "application/json"); err != nil {
		a.logger.Warn("session archive upload failed", zap.String("session_name", key), zap.Error(err))
	}
}
