package ports

import "github.com/meshpart/meshpart/pkg/domain"

// PayloadCodec packs and unpacks the field payload attached to an entity
// (solution values, material data, whatever the surrounding application
// stores per entity). The protocol treats the bytes as opaque: it packs on
// the sending rank, ships them with the entity record, and unpacks on the
// receiving rank after the entity has been reconstructed.
type PayloadCodec interface {
	// Pack serializes the payload of a locally present entity.
	Pack(key domain.EntityKey) ([]byte, error)

	// Unpack applies received payload bytes to a locally present entity.
	// An error here is fatal to the whole migration (aggregated across
	// ranks before surfacing).
	Unpack(key domain.EntityKey, data []byte) error
}
