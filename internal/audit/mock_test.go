// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// mockStore is a configurable in-memory Store for tests.
type mockStore struct {
	mu sync.Mutex

	saved      []*Event
	batches    [][]*Event
	criticals  []*CriticalEventRecord
	queryRes   []Event
	failures   int
	archiveRes int64
	purgeRes   int64

	saveErr     error
	criticalErr error
	queryErr    error
	countErr    error
	archiveErr  error
	purgeErr    error

	archiveCalls []retentionCall
	purgeCalls   []retentionCall
}

type retentionCall struct {
	eventType string
	before    time.Time
}

func newMockStore() *mockStore {
	return &mockStore{}
}

func (m *mockStore) SaveBatch(_ context.Context, events []*Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	batch := make([]*Event, len(events))
	copy(batch, events)
	m.batches = append(m.batches, batch)
	m.saved = append(m.saved, batch...)
	return nil
}

func (m *mockStore) SaveCritical(_ context.Context, rec *CriticalEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.criticalErr != nil {
		return m.criticalErr
	}
	m.criticals = append(m.criticals, rec)
	return nil
}

func (m *mockStore) Get(_ context.Context, id string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.saved {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("event not found: %s", id)
}

func (m *mockStore) Query(_ context.Context, _ Filter) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryRes, nil
}

func (m *mockStore) CountRecentFailures(_ context.Context, _ string, _ time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.failures, nil
}

func (m *mockStore) Archive(_ context.Context, eventType string, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archiveCalls = append(m.archiveCalls, retentionCall{eventType, before})
	if m.archiveErr != nil {
		return 0, m.archiveErr
	}
	return m.archiveRes, nil
}

func (m *mockStore) Purge(_ context.Context, eventType string, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeCalls = append(m.purgeCalls, retentionCall{eventType, before})
	if m.purgeErr != nil {
		return 0, m.purgeErr
	}
	return m.purgeRes, nil
}

func (m *mockStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Stats{TotalEvents: int64(len(m.saved))}, nil
}

func (m *mockStore) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *mockStore) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *mockStore) criticalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.criticals)
}
