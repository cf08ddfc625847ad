package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// RevisionStore keeps last built revisions in process memory. Contents are
// lost on restart, so every head is built once after a restart.
type RevisionStore struct {
	mu      sync.RWMutex
	records map[string]model.RevisionRecord
}

var _ interfaces.RevisionStore = (*RevisionStore)(nil)

// NewRevisionStore creates an empty RevisionStore
func NewRevisionStore() *RevisionStore {
	return &RevisionStore{
		records: make(map[string]model.RevisionRecord),
	}
}

func (s *RevisionStore) GetLastBuilt(ctx context.Context, key model.HeadKey) (model.Revision, error) {
	s.mu.RLock()
	record, ok := s.records[key.ID()]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return record.Revision()
}

func (s *RevisionStore) PutLastBuilt(ctx context.Context, key model.HeadKey, rev model.Revision) error {
	record, err := model.NewRevisionRecord(rev)
	if err != nil {
		return err
	}
	record.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key.ID()] = *record
	return nil
}
