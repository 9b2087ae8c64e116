package meshpart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meshpart/meshpart/internal/logging"
	"github.com/meshpart/meshpart/internal/mesh"
	"github.com/meshpart/meshpart/internal/migrate"
	"github.com/meshpart/meshpart/pkg/domain"
	"github.com/meshpart/meshpart/pkg/observability"
	"github.com/meshpart/meshpart/pkg/ports"
)

// Mesh is one rank's view of the distributed entity-relation graph. It wraps
// the internal store and migration engine behind a key-based API.
//
// A Mesh is not safe for concurrent use: the surrounding system runs exactly
// one mutating protocol mesh-wide at a time.
type Mesh struct {
	store   *mesh.Store
	ex      ports.Exchanger
	index   ports.DistributedIndex
	engine  *migrate.Engine
	logger  *slog.Logger
	codec   ports.PayloadCodec
	metrics *observability.Metrics

	pendingAdds []domain.EntityKey
}

// Option configures a Mesh.
type Option func(*Mesh)

// WithLogger injects a structured logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mesh) {
		m.logger = l
	}
}

// WithPayloadCodec attaches the collaborator that packs and unpacks
// per-entity field payload during migration and ghosting.
func WithPayloadCodec(c ports.PayloadCodec) Option {
	return func(m *Mesh) {
		m.codec = c
	}
}

// WithMetrics attaches prometheus instrumentation to the protocol stages.
func WithMetrics(met *observability.Metrics) Option {
	return func(m *Mesh) {
		m.metrics = met
	}
}

// New creates the mesh for one rank over a collective transport and a shared
// key directory.
func New(ex ports.Exchanger, index ports.DistributedIndex, opts ...Option) *Mesh {
	m := &Mesh{
		store:  mesh.NewStore(ex.Rank()),
		ex:     ex,
		index:  index,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.ForRank(m.logger, ex.Rank())
	m.engine = migrate.NewEngine(m.store, ex, index, m.codec, m.logger, m.metrics)
	return m
}

// Rank returns this process's rank.
func (m *Mesh) Rank() int { return m.ex.Rank() }

// Size returns the number of ranks in the mesh.
func (m *Mesh) Size() int { return m.ex.Size() }

// Declare makes an entity locally present with the given owner rank
// (idempotent). A copy owned by this rank lands in the owned part, any other
// copy in the shared part. The distributed index learns about it on the next
// Finalize.
func (m *Mesh) Declare(key domain.EntityKey, owner int) error {
	if owner < 0 || owner >= m.ex.Size() {
		return fmt.Errorf("declare %s: owner rank %d out of range [0,%d)", key, owner, m.ex.Size())
	}
	if _, exists := m.store.Get(key); exists {
		return nil
	}
	h := m.store.Declare(key, owner)
	if owner == m.ex.Rank() {
		m.store.AddPart(h, domain.PartOwned)
	} else {
		m.store.AddPart(h, domain.PartShared)
	}
	m.pendingAdds = append(m.pendingAdds, key)
	return nil
}

// DeclareRelation records the symmetric typed edge between two locally
// present entities. The two kinds must differ; the lower kind is the
// downward side.
func (m *Mesh) DeclareRelation(a, b domain.EntityKey, ordinal uint32) error {
	ha, ok := m.store.Get(a)
	if !ok {
		return fmt.Errorf("relation %s <-> %s: %w (%s)", a, b, domain.ErrEntityNotFound, a)
	}
	hb, ok := m.store.Get(b)
	if !ok {
		return fmt.Errorf("relation %s <-> %s: %w (%s)", a, b, domain.ErrEntityNotFound, b)
	}
	return m.store.DeclareRelation(ha, hb, ordinal)
}

// AddPart tags a locally present entity with an application part name.
func (m *Mesh) AddPart(key domain.EntityKey, part string) error {
	h, ok := m.store.Get(key)
	if !ok {
		return fmt.Errorf("add part %q to %s: %w", part, key, domain.ErrEntityNotFound)
	}
	m.store.AddPart(h, part)
	return nil
}

// Finalize pushes pending declarations to the distributed index and
// re-derives every entity's communication roster. Collective: every rank
// must call it after a construction phase, even with nothing pending.
func (m *Mesh) Finalize(ctx context.Context) error {
	if err := m.index.UpdateKeys(ctx, m.ex.Rank(), m.pendingAdds, nil); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	m.pendingAdds = nil
	return m.engine.Synchronize(ctx)
}

// DeclareGhostDomain registers a named replication tier (level >= 1).
func (m *Mesh) DeclareGhostDomain(name string, level domain.GhostLevel) error {
	_, err := m.store.DeclareGhostDomain(name, level)
	return err
}

// Ghost adds a locally-owned entity to a ghost domain's push list with the
// given receiver ranks. Takes effect on the next PushGhosts.
func (m *Mesh) Ghost(domainName string, key domain.EntityKey, receivers ...int) error {
	h, ok := m.store.Get(key)
	if !ok {
		return fmt.Errorf("ghost %s: %w", key, domain.ErrEntityNotFound)
	}
	if m.store.Owner(h) != m.ex.Rank() {
		return fmt.Errorf("ghost %s: only the owner can push replicas", key)
	}
	for _, d := range m.store.GhostDomains() {
		if d.Name == domainName {
			d.Add(h, receivers...)
			return nil
		}
	}
	return fmt.Errorf("ghost %s: domain %q not declared", key, domainName)
}

// PushGhosts replicates the named domain's members to their receiver ranks.
// Collective.
func (m *Mesh) PushGhosts(ctx context.Context, domainName string) error {
	return m.engine.PushGhosts(ctx, domainName)
}

// ChangeOwnership executes one collective ownership transfer; see the
// package documentation for the protocol. Collective: every rank calls it
// with its own (possibly empty) request list.
func (m *Mesh) ChangeOwnership(ctx context.Context, requests []domain.ChangeRequest) error {
	return m.engine.ChangeOwnership(ctx, requests)
}

// Has reports whether the key is locally present (any holding reason).
func (m *Mesh) Has(key domain.EntityKey) bool {
	_, ok := m.store.Get(key)
	return ok
}

// Owner returns the owner rank of a locally present entity.
func (m *Mesh) Owner(key domain.EntityKey) (int, error) {
	h, ok := m.store.Get(key)
	if !ok {
		return 0, fmt.Errorf("owner of %s: %w", key, domain.ErrEntityNotFound)
	}
	return m.store.Owner(h), nil
}

// Parts returns the part memberships of a locally present entity, sorted.
func (m *Mesh) Parts(key domain.EntityKey) ([]string, error) {
	h, ok := m.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("parts of %s: %w", key, domain.ErrEntityNotFound)
	}
	return m.store.Parts(h), nil
}

// Roster returns the communication roster of a locally present entity.
func (m *Mesh) Roster(key domain.EntityKey) ([]domain.RosterEntry, error) {
	h, ok := m.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("roster of %s: %w", key, domain.ErrEntityNotFound)
	}
	return m.store.Roster(h), nil
}

// Snapshot captures this rank's protocol-visible state, entities key-sorted.
func (m *Mesh) Snapshot() domain.MeshSnapshot {
	return m.store.Snapshot(m.ex.Size())
}
