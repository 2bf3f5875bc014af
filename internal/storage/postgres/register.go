package postgres

import "bidsevents/internal/storage"

func init() {
	// registers the index store backend factory
	storage.Register("postgres", New)
}
