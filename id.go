package fieldgate

import "github.com/xraph/fieldgate/id"

// ID is the primary identifier type for fieldgate entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
