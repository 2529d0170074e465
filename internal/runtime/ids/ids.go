// Package ids generates identifiers for audit envelopes and broker messages.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewEnvelopeID returns a random UUID. Consumers of the audit topic read the
// _metadata ids as UUIDs.
func NewEnvelopeID() string {
	return uuid.NewString()
}

var monotonic = struct {
	sync.Mutex
	source *ulid.MonotonicEntropy
}{source: ulid.Monotonic(rand.Reader, 0)}

// CreateULID returns a 26-character ULID that sorts after every ULID
// previously returned by this process. Used for broker messages that carry
// no envelope id.
func CreateULID() string {
	monotonic.Lock()
	defer monotonic.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), monotonic.source).String()
}
