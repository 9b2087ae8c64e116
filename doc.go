// Package meshpart is a distributed, partitioned entity-relation graph (a
// "mesh") shared across parallel ranks, together with the protocol that
// migrates ownership of entities between ranks while keeping every rank's
// view of sharing and ghosting consistent.
//
// Each rank constructs one Mesh over two pluggable backends: a collective
// transport (ports.Exchanger) and a global key directory
// (ports.DistributedIndex). The in-process adapters in pkg/adapters/memory
// make a whole cluster runnable inside one test; pkg/adapters/redis shares
// the directory between real processes.
//
// The one capability the package exposes on top of ordinary graph
// construction is Mesh.ChangeOwnership: apply an externally-decided
// reassignment list and restore a globally consistent mesh, using bulk
// collective exchange only; there is no central coordinator and no wire-level
// rollback.
// Correctness comes from collective pre-validation and deterministic
// reconstruction, not transactions.
package meshpart
