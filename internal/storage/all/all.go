// Package all registers every storage backend. Commands blank-import it to
// pull in the full set; import an individual backend package instead to keep
// a binary small.
package all

import (
	_ "mongo2sql/internal/storage/mssql"
	_ "mongo2sql/internal/storage/postgres"
	_ "mongo2sql/internal/storage/sqlite"
)
