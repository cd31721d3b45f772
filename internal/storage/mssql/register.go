package mssql

import "mongo2sql/internal/storage"

func init() {
	storage.Register("mssql", New)
}
