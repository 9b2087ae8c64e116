// Package domain contains the pure value types of the distributed mesh:
// entity keys, relations, communication rosters, ownership-change requests
// and the error taxonomy of the migration protocol.
//
// Nothing in this package performs I/O or holds mutable process state; the
// mesh itself lives in internal/mesh and the protocol in internal/migrate.
package domain
