package store

import (
	"context"
	"sort"
	"sync"

	"github.com/golang/geo/s2"
	"github.com/google/uuid"

	"github.com/BenjaminPelletier/dss/internal/geo"
)

// cellContents tracks which entities of each kind currently cover a cell.
type cellContents struct {
	subscriptions map[uuid.UUID]struct{}
	operations    map[uuid.UUID]struct{}
}

func (c *cellContents) empty() bool {
	return len(c.subscriptions) == 0 && len(c.operations) == 0
}

// Memory is the required in-memory reference implementation of Store. A
// single mutex is held for the full duration of every Transact call, giving
// every core operation one consistent snapshot of the store.
type Memory struct {
	mu            sync.Mutex
	subscriptions map[uuid.UUID]*Subscription
	operations    map[uuid.UUID]*Operation
	cells         map[s2.CellID]*cellContents
}

// NewMemory creates an empty in-memory reference store.
func NewMemory() *Memory {
	return &Memory{
		subscriptions: make(map[uuid.UUID]*Subscription),
		operations:    make(map[uuid.UUID]*Operation),
		cells:         make(map[s2.CellID]*cellContents),
	}
}

// Transact acquires the store's single exclusive lock for fn's entire
// duration. The context is accepted to satisfy the Store interface and for
// future durable backends; the in-memory store performs no I/O and never
// blocks on ctx.
func (m *Memory) Transact(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memoryTx{m: m})
}

// memoryTx is the Tx handed to a Transact closure. It operates directly on
// Memory's maps; it is only ever used while m.mu is held.
type memoryTx struct {
	m *Memory
}

func (tx *memoryTx) GetSubscription(id uuid.UUID) (*Subscription, bool) {
	sub, ok := tx.m.subscriptions[id]
	return sub, ok
}

func (tx *memoryTx) UpsertSubscription(sub *Subscription) {
	if old, ok := tx.m.subscriptions[sub.ID]; ok {
		tx.m.removeFromCells(old.Vol4.Cells, sub.ID, true)
	}
	tx.m.subscriptions[sub.ID] = sub
	tx.m.addToCells(sub.Vol4.Cells, sub.ID, true)
}

func (tx *memoryTx) DeleteSubscription(id uuid.UUID) {
	sub, ok := tx.m.subscriptions[id]
	if !ok {
		return
	}
	delete(tx.m.subscriptions, id)
	tx.m.removeFromCells(sub.Vol4.Cells, id, true)
}

func (tx *memoryTx) FindSubscriptions(vol4 geo.Volume4, owner string) []*Subscription {
	candidates := tx.m.candidateIDs(vol4.Cells, true)
	out := make([]*Subscription, 0, len(candidates))
	for _, id := range candidates {
		sub := tx.m.subscriptions[id]
		if sub == nil {
			continue
		}
		if owner != "" && sub.Owner != owner {
			continue
		}
		if !vol4.OverlapsTimeAltitude(sub.Vol4) {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (tx *memoryTx) GetOperation(id uuid.UUID) (*Operation, bool) {
	op, ok := tx.m.operations[id]
	return op, ok
}

func (tx *memoryTx) UpsertOperation(op *Operation) {
	if old, ok := tx.m.operations[op.ID]; ok {
		tx.m.removeFromCells(old.Vol4.Cells, op.ID, false)
	}
	tx.m.operations[op.ID] = op
	tx.m.addToCells(op.Vol4.Cells, op.ID, false)
}

func (tx *memoryTx) DeleteOperation(id uuid.UUID) {
	op, ok := tx.m.operations[id]
	if !ok {
		return
	}
	delete(tx.m.operations, id)
	tx.m.removeFromCells(op.Vol4.Cells, id, false)
}

func (tx *memoryTx) FindOperations(vol4 geo.Volume4) []*Operation {
	candidates := tx.m.candidateIDs(vol4.Cells, false)
	out := make([]*Operation, 0, len(candidates))
	for _, id := range candidates {
		op := tx.m.operations[id]
		if op == nil {
			continue
		}
		if !vol4.OverlapsTimeAltitude(op.Vol4) {
			continue
		}
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// candidateIDs unions the bucket contents (subscriptions or operations,
// selected by forSubscriptions) of every cell in cells, deduplicated.
func (m *Memory) candidateIDs(cells map[s2.CellID]struct{}, forSubscriptions bool) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	for cell := range cells {
		bucket, ok := m.cells[cell]
		if !ok {
			continue
		}
		ids := bucket.operations
		if forSubscriptions {
			ids = bucket.subscriptions
		}
		for id := range ids {
			seen[id] = struct{}{}
		}
	}
	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

func (m *Memory) addToCells(cells map[s2.CellID]struct{}, id uuid.UUID, isSubscription bool) {
	for cell := range cells {
		bucket, ok := m.cells[cell]
		if !ok {
			bucket = &cellContents{
				subscriptions: make(map[uuid.UUID]struct{}),
				operations:    make(map[uuid.UUID]struct{}),
			}
			m.cells[cell] = bucket
		}
		if isSubscription {
			bucket.subscriptions[id] = struct{}{}
		} else {
			bucket.operations[id] = struct{}{}
		}
	}
}

func (m *Memory) removeFromCells(cells map[s2.CellID]struct{}, id uuid.UUID, isSubscription bool) {
	for cell := range cells {
		bucket, ok := m.cells[cell]
		if !ok {
			continue
		}
		if isSubscription {
			delete(bucket.subscriptions, id)
		} else {
			delete(bucket.operations, id)
		}
		if bucket.empty() {
			delete(m.cells, cell)
		}
	}
}
