// Package mvcc implements the optimistic version check used before every
// admin record write. The check is advisory; the storage layer repeats it
// atomically as part of the conditional UPDATE.
package mvcc

import (
	"fmt"

	"github.com/faucetdb/rolekeeper/internal/model"
)

// ConflictError reports that the caller edited a stale copy. Current is the
// record as it is stored now.
type ConflictError struct {
	Current       *model.Admin
	ClientVersion int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version mismatch for admin %d: client has %d, current is %d (concurrent modification detected)",
		e.Current.ID, e.ClientVersion, e.Current.Version)
}

// CheckVersion returns nil when clientVersion matches the stored version,
// authorizing exactly one write. Otherwise it returns a *ConflictError
// holding a copy of current.
func CheckVersion(current *model.Admin, clientVersion int64) error {
	if current.Version == clientVersion {
		return nil
	}
	return &ConflictError{Current: current.Clone(), ClientVersion: clientVersion}
}

// NextVersion is the version a successful write stamps on the record.
func NextVersion(current int64) int64 {
	return current + 1
}
