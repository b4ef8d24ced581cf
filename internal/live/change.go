package live

import es "pet-care-log/internal/ports/entitystore"

// Change es el alias local de entitystore.Change.
type Change = es.Change
