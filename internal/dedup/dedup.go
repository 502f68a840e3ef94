// Package dedup suppresses accidental resubmission of mutating requests.
// A request is identified by actor, method, path and a hash of its target;
// an identical request inside the window is rejected with a retry hint.
// It is a best-effort guard for double-submits, not a correctness
// mechanism: the version check on the record is what prevents lost updates.
package dedup

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultWindow        = 3 * time.Second
	DefaultSweepInterval = 5 * time.Second
)

// Request is the shape of a request as the suppressor sees it.
type Request struct {
	ActorID string
	Method  string
	Path    string
	Target  string
}

// Decision is the outcome of CheckAndRegister.
type Decision struct {
	Admitted          bool
	RetryAfterSeconds int
}

// Admit is the decision for a request that may proceed.
var Admit = Decision{Admitted: true}

// Suppressor decides whether a request is a duplicate of one seen within
// the window, registering it when it is not.
type Suppressor interface {
	CheckAndRegister(ctx context.Context, r Request) (Decision, error)
}

// IsMutating reports whether method changes state. Only mutating requests
// are subject to suppression.
func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Key builds the composite key for r.
func Key(r Request) string {
	return fmt.Sprintf("%s|%s|%s|%016x", r.ActorID, r.Method, r.Path, xxhash.Sum64String(r.Target))
}

func reject(remaining time.Duration) Decision {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	rejectionsTotal.Inc()
	return Decision{RetryAfterSeconds: secs}
}
