package sqlite

import "mongo2sql/internal/storage"

func init() {
	storage.Register("sqlite", New)
}
