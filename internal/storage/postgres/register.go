package postgres

import "mongo2sql/internal/storage"

func init() {
	storage.Register("postgres", New)
}
