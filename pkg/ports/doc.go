// Package ports defines the driven-port interfaces of the mesh: the
// collective transport, the distributed key directory and the field-payload
// codec. Adapters live under pkg/adapters; the protocol in internal/migrate
// depends only on these interfaces.
package ports
