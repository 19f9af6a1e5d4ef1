package sink

import (
	"context"

	"github.com/soocke/cyclewatch/storage"
)

// StoreSink writes records to a cycle store.
type StoreSink struct {
	store storage.Store
}

func NewStoreSink(store storage.Store) *StoreSink { return &StoreSink{store: store} }

func (s *StoreSink) Consume(ctx context.Context, rec Record) error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveCycle(ctx, rec.SessionID, rec.Cycle())
}

func (s *StoreSink) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
