package crdt

import (
	"sync"

	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/hlc"
)

// MergeFunc is the registry's merge function signature (spec §4.2):
// given both sides' serialized payloads and their HLC timestamps, return
// the merged payload.
type MergeFunc func(localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error)

// WASMCallback is the optional escape hatch consulted when a Custom type
// has no registered merge function (spec §4.2, §6 merge_root_state).
type WASMCallback func(typeName string, localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, bool, error)

// Registry is a process-wide, initialize-once, read-many map from
// type_name to merge function (spec §4.2, §9: "Global mutable state").
// Registration occurs once during application runtime init; after Seal
// every further Register call is rejected.
type Registry struct {
	mu       sync.RWMutex
	fns      map[string]MergeFunc
	sealed   bool
	callback WASMCallback
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]MergeFunc)}
}

// Register adds a merge function for type_name. Registration occurs once
// during application runtime initialization via an init hook the runtime
// exposes to the application module (spec §4.2); calling Register after
// Seal returns an error rather than silently mutating shared state.
func (r *Registry) Register(typeName string, fn MergeFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errors.New("merge registry is sealed; register during init only", errors.NewKV("TypeName", typeName))
	}
	r.fns[typeName] = fn
	return nil
}

// SetWASMCallback installs the optional custom-merge callback consulted
// when a Custom type has no registered merge function.
func (r *Registry) SetWASMCallback(cb WASMCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = cb
}

// Seal freezes the registry against further Register calls. Must be
// called once application runtime init completes; reads are safe to
// share across goroutines unsealed or sealed (spec §5 shared-resource
// policy: "registered-to at init only; read-only afterwards").
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Lookup returns the registered merge function for type_name, if any.
func (r *Registry) Lookup(typeName string) (MergeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[typeName]
	return fn, ok
}

func (r *Registry) callbackFn() WASMCallback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callback
}
