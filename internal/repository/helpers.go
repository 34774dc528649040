package repository

import (
	"database/sql"
	"time"
)

func nullTimePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// timePtrArg converts an optional time into a driver argument (NULL for nil).
func timePtrArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
