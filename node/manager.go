package node

import (
	"context"

	libp2pPeer "github.com/libp2p/go-libp2p/core/peer"

	"github.com/sourcenetwork/syncore/bridge"
	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/crdt"
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/hlc"
	"github.com/sourcenetwork/syncore/logging"
	"github.com/sourcenetwork/syncore/merkle"
	"github.com/sourcenetwork/syncore/metrics"
	"github.com/sourcenetwork/syncore/peer"
	"github.com/sourcenetwork/syncore/runtime"
	"github.com/sourcenetwork/syncore/session"
	"github.com/sourcenetwork/syncore/store"
	"github.com/sourcenetwork/syncore/transport"
)

// Config bundles a Manager's tunables, mirroring the teacher's
// cli/start.go flag-to-config shape (peer capacity, buffer sizes,
// dial fan-out) without yet being wired to viper (config/ owns that).
type Config struct {
	RecentPeerCapacity int
	DialMaxConcurrent  int
	BridgeCapacity     int
	SessionBufferCap   int
	Strategy           peer.Strategy
	BackoffThreshold   int
}

// DefaultConfig returns the spec's suggested defaults (§4.6, §4.7).
func DefaultConfig() Config {
	return Config{
		RecentPeerCapacity: 256,
		DialMaxConcurrent:  peer.DefaultMaxConcurrentDials,
		BridgeCapacity:     bridge.DefaultCapacity,
		SessionBufferCap:   1000,
		Strategy:           peer.StrategyBaseline,
		BackoffThreshold:   peer.DefaultBackoffThreshold,
	}
}

// Manager owns every long-lived collaborator a running node needs: the
// causal delta DAG and its applier, the key-value store, the CRDT merge
// registry, peer bookkeeping and dial tracking, the network event
// bridge, and metrics. It plays the role the teacher's net.Peer plays
// for a DefraDB instance — one struct the rest of the process talks
// to — built from this repo's own packages instead (spec §3 Ownership).
type Manager struct {
	cfg Config
	log *logging.Logger

	engine   *Engine
	dag      *core.DAG
	registry *crdt.Registry
	rt       runtime.Runtime
	tr       transport.Transport

	recent  *peer.Recent
	tracker *peer.Tracker
	events  *bridge.Bridge
	metrics *metrics.Metrics

	sessions map[string]*session.Session
}

// New builds a Manager. rt and tr may be nil in tests that only
// exercise local DAG/store behavior; any call that reaches the network
// or runtime will then return an error rather than panic.
func New(cfg Config, kv store.Store, rt runtime.Runtime, tr transport.Transport, log *logging.Logger) (*Manager, error) {
	if log == nil {
		log = logging.Nop()
	}

	registry := crdt.NewRegistry()
	crdt.SetLogger(log)
	if rt != nil {
		// RegisterMergeFunctions is the runtime module's own init hook
		// (spec §6); it is a distinct lifecycle step from populating
		// this node's crdt.Registry; callers register Custom types via
		// Registry() directly, then call SealMergeRegistry once.
		if err := rt.RegisterMergeFunctions(); err != nil {
			return nil, errors.Wrap("register merge functions", err)
		}
	}

	engine := NewEngine(kv)

	var executor session.DeltaExecutor
	if rt != nil {
		executor = NewExecutor(rt, engine, mergeCallback(registry))
	}
	applier := session.NewApplier(engine, executor, log)
	dag := core.NewDAG(applier)
	applier.BindParentHashes(dag)

	recent, err := peer.NewRecent(cfg.RecentPeerCapacity)
	if err != nil {
		return nil, errors.Wrap("build recent-peer cache", err)
	}

	m := &Manager{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		dag:      dag,
		registry: registry,
		rt:       rt,
		tr:       tr,
		recent:   recent,
		events:   bridge.New(cfg.BridgeCapacity, log),
		metrics:  metrics.New(),
		sessions: make(map[string]*session.Session),
	}
	m.tracker = peer.NewTracker(m.dialVia(tr), cfg.DialMaxConcurrent, m.onDialAttempt)
	return m, nil
}

// MergeCallback builds a merkle.MergeCallback bound to the Manager's
// registry — the value session.Driver and the tree comparison engine
// both need for dispatching merges during a sync session (spec §4.3:
// "merge_by_crdt_type"). Built-in kinds dispatch directly;
// core.CRDTCustom falls through to the registry (and then the WASM
// callback, and then LWW) inside crdt.MergeByCRDTType itself.
func (m *Manager) MergeCallback() merkle.MergeCallback {
	return mergeCallback(m.registry)
}

// mergeCallback closes a merkle.MergeCallback over registry without
// requiring a live Manager, so the Applier's Executor (built before the
// Manager struct exists) can share it with every tree protocol.
func mergeCallback(registry *crdt.Registry) merkle.MergeCallback {
	return func(t core.CRDTType, localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error) {
		return crdt.MergeByCRDTType(registry, t, localBytes, remoteBytes, localTS, remoteTS)
	}
}

// Registry exposes the node's CRDT merge registry, so runtime wiring
// can register Custom types and WASM callbacks before the first sync.
func (m *Manager) Registry() *crdt.Registry { return m.registry }

// SealMergeRegistry freezes the merge registry against further
// registration. Callers invoke this once, after registering every
// Custom type the runtime supports and before the node's first sync
// session (spec §4.2, §5).
func (m *Manager) SealMergeRegistry() { m.registry.Seal() }

// DAG exposes the node's causal delta DAG.
func (m *Manager) DAG() *core.DAG { return m.dag }

// Engine exposes the node's storage adapter.
func (m *Manager) Engine() *Engine { return m.engine }

// Events exposes the node's network event bridge.
func (m *Manager) Events() *bridge.Bridge { return m.events }

// Metrics exposes the node's metrics bundle.
func (m *Manager) Metrics() *metrics.Metrics { return m.metrics }

// Admit feeds an incoming delta into the DAG, buffering it on the
// owning session instead if that peer's session is mid-state-transfer
// (spec §4.5.2).
func (m *Manager) Admit(peerID string, delta *core.CausalDelta) (core.AdmitOutcome, error) {
	if s, ok := m.sessions[peerID]; ok && s.IsBuffering() {
		s.Buffer().Push(delta)
		return core.Pending, nil
	}
	return m.dag.Admit(delta)
}

// NewSyncSession returns the Session tracking peerID (creating one on
// first use) and a Driver wired to run a negotiated protocol against
// rp. The Driver is bound to this node's DAG as its checkpoint
// installer, so a Snapshot/CompressedSnapshot transfer can install
// boundary markers for the peer's dag_heads once it verifies (spec
// §4.4, I9's companion P9).
func (m *Manager) NewSyncSession(peerID string, rp *RemotePeer) (*session.Session, *session.Driver) {
	sess, ok := m.sessions[peerID]
	if !ok {
		sess = session.New(peerID, m.cfg.SessionBufferCap)
		m.sessions[peerID] = sess
	}
	driver := session.NewDriver(m.engine, rp, m.MergeCallback(), rp, rp)
	driver.BindSession(sess)
	driver.BindCheckpointInstaller(m.dag)
	return sess, driver
}

// dialVia adapts a transport.Transport into peer.DialFunc, opening a
// stream and handing back the Stream as the opaque connection handle
// (spec §4.6: "dial produces a connection the caller reuses").
func (m *Manager) dialVia(tr transport.Transport) peer.DialFunc {
	return func(ctx context.Context, rec peer.Record) (any, error) {
		if tr == nil {
			return nil, errors.New("dial attempted without a transport wired in")
		}
		return tr.OpenStream(ctx, rec.ID)
	}
}

func (m *Manager) onDialAttempt(attempt peer.Attempt, rec *peer.Record) {
	outcome := "failure"
	if attempt.Succeeded {
		outcome = "success"
		m.recent.Remember(*rec)
	}
	m.metrics.DialAttempts.WithLabelValues(outcome).Inc()
}

// FindPeers composes dial candidates via peer.Find using the
// transport's live mesh/routing views and the Manager's recent-peer
// LRU as the four sources (spec §4.6).
func (m *Manager) FindPeers(ctx context.Context, contextID string, inSession peer.InSession) []peer.Record {
	sources := peer.Sources{
		Mesh: func() []peer.Record {
			return m.meshRecords(ctx, contextID)
		},
		Recent: m.recent.All,
		Routing: func() []peer.Record {
			return m.routingRecords(ctx, contextID)
		},
	}
	return peer.Find(sources, m.cfg.Strategy, inSession, m.cfg.BackoffThreshold)
}

func (m *Manager) meshRecords(ctx context.Context, contextID string) []peer.Record {
	if m.tr == nil {
		return nil
	}
	ids, err := m.tr.ListMeshPeers(ctx, contextID)
	if err != nil {
		m.log.Warn(ctx, "list mesh peers failed", logging.NewKV("Error", err.Error()))
		return nil
	}
	return toRecords(ids)
}

func (m *Manager) routingRecords(ctx context.Context, contextID string) []peer.Record {
	if m.tr == nil {
		return nil
	}
	ids, err := m.tr.RoutingLookup(ctx, contextID)
	if err != nil {
		m.log.Warn(ctx, "routing lookup failed", logging.NewKV("Error", err.Error()))
		return nil
	}
	return toRecords(ids)
}

func toRecords(ids []libp2pPeer.ID) []peer.Record {
	out := make([]peer.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, peer.Record{ID: id})
	}
	return out
}

// Dial races dials across candidates and, on success, returns the
// winning Stream.
func (m *Manager) Dial(ctx context.Context, candidates []peer.Record) (transport.Stream, *peer.Record, error) {
	conn, rec, err := m.tracker.DialUntilConnected(ctx, candidates)
	if err != nil {
		return nil, nil, err
	}
	stream, ok := conn.(transport.Stream)
	if !ok {
		return nil, nil, errors.New("dial produced a connection that is not a transport.Stream")
	}
	return stream, rec, nil
}
