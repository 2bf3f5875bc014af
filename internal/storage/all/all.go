// Package all registers every index store backend.
package all

import (
	_ "bidsevents/internal/storage/mssql"
	_ "bidsevents/internal/storage/postgres"
	_ "bidsevents/internal/storage/sqlite"
)
