package services

import (
	"context"
	"sort"
	"sync"

	"mingle_server/models"
	"mingle_server/utils"
)

// In-memory repositories. Used by tests and for running the server without
// AWS credentials; they honor the same conditional-write contract as the
// Dynamo implementations.

type MemoryPairRepository struct {
	mu    sync.Mutex
	pairs map[string]models.PairRecord
}

func NewMemoryPairRepository() *MemoryPairRepository {
	return &MemoryPairRepository{pairs: make(map[string]models.PairRecord)}
}

func copyPair(record models.PairRecord) models.PairRecord {
	actions := make(map[string]models.PairAction, len(record.Actions))
	for k, v := range record.Actions {
		actions[k] = v
	}
	record.Actions = actions
	members := make([]string, len(record.Members))
	copy(members, record.Members)
	record.Members = members
	return record
}

func (r *MemoryPairRepository) Get(_ context.Context, pairKey string) (*models.PairRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.pairs[pairKey]
	if !ok {
		return nil, utils.ErrNotFound
	}
	out := copyPair(record)
	return &out, nil
}

func (r *MemoryPairRepository) Create(_ context.Context, record *models.PairRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pairs[record.PairKey]; exists {
		return utils.ErrConflict
	}
	r.pairs[record.PairKey] = copyPair(*record)
	return nil
}

func (r *MemoryPairRepository) Update(_ context.Context, record *models.PairRecord, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.pairs[record.PairKey]
	if !exists || stored.Version != expectedVersion {
		return utils.ErrConflict
	}
	r.pairs[record.PairKey] = copyPair(*record)
	return nil
}

func (r *MemoryPairRepository) ListByMember(_ context.Context, userID string) ([]models.PairRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var records []models.PairRecord
	for _, record := range r.pairs {
		if models.PairContains(record.PairKey, userID) {
			records = append(records, copyPair(record))
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].PairKey < records[j].PairKey })
	return records, nil
}

type MemoryMessageRepository struct {
	mu       sync.Mutex
	messages map[string][]models.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[string][]models.Message)}
}

func (r *MemoryMessageRepository) Append(_ context.Context, message models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.messages[message.PairID]
	list = append(list, message)
	sort.Slice(list, func(i, j int) bool { return list[i].SortKey() < list[j].SortKey() })
	r.messages[message.PairID] = list
	return nil
}

func (r *MemoryMessageRepository) ListByPair(_ context.Context, pairID string, page, limit int) ([]models.Message, bool, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.messages[pairID]

	// Pages count back from the newest message; contents stay oldest-first.
	end := len(list) - (page-1)*limit
	if end <= 0 {
		return nil, false, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.Message, end-start)
	copy(out, list[start:end])
	return out, start > 0, nil
}

func (r *MemoryMessageRepository) MarkRead(_ context.Context, pairID, readerID, readAt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.messages[pairID]
	for i := range list {
		if list[i].ReceiverID == readerID && list[i].ReadAt == "" {
			list[i].ReadAt = readAt
		}
	}
	return nil
}
