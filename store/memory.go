package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/tidwall/btree"
)

// kv is one ordered entry in the in-memory backend's btree, keyed on
// raw store key bytes.
type kv struct {
	key   []byte
	value []byte
}

func lessKV(a, b kv) bool { return compareKeys(a.key, b.key) < 0 }

// Memory is an in-memory Store backed by a sorted btree, used for tests
// and single-node deployments without a durable backend (spec §6).
type Memory struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[kv]
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tree: btree.NewBTreeG(lessKV)}
}

func (m *Memory) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.tree.Get(kv{key: key})
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

func (m *Memory) Put(_ context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.tree.Set(kv{key: append([]byte(nil), key...), value: cp})
	return nil
}

func (m *Memory) Delete(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Delete(kv{key: key})
	return nil
}

func (m *Memory) Iter(_ context.Context, prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	var items []kv
	m.tree.Ascend(kv{key: prefix}, func(item kv) bool {
		if !bytes.HasPrefix(item.key, prefix) {
			return false
		}
		items = append(items, item)
		return true
	})
	m.mu.RUnlock()

	for _, item := range items {
		if err := fn(item.key, item.value); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) BatchWrite(_ context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Value == nil {
			m.tree.Delete(kv{key: op.Key})
			continue
		}
		cp := make([]byte, len(op.Value))
		copy(cp, op.Value)
		m.tree.Set(kv{key: append([]byte(nil), op.Key...), value: cp})
	}
	return nil
}
