package domain

// Part names with protocol meaning. Arbitrary additional part tags may be
// attached to entities; only these three are interpreted by the migration
// protocol itself.
const (
	// PartOwned marks an entity this process is the authoritative owner of.
	PartOwned = "owned"
	// PartShared marks a non-owned copy held because it is adjacent to
	// owned data (ghost level 0).
	PartShared = "shared"
	// PartGhosted marks a non-owned copy held only because a ghosting
	// domain replicated it here (ghost level > 0).
	PartGhosted = "ghosted"
)
