// Package gallery persists enrolled identities and their embeddings.
package gallery

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

// Store is the durable identity gallery. Records are cumulative: Enroll
// appends samples to an existing label and nothing is ever removed.
type Store interface {
	// Enroll appends embeddings to the record for label, creating it if
	// needed. The record is durable when Enroll returns nil.
	Enroll(ctx context.Context, label string, embeddings []domain.Embedding) error

	// LoadAll reads every record. Unreadable records are reported as
	// warnings on the snapshot; only a failure of the storage medium
	// itself is returned as an error.
	LoadAll(ctx context.Context) (*Snapshot, error)

	// Get returns the embeddings of one label or domain.ErrIdentityNotFound.
	Get(ctx context.Context, label string) ([]domain.Embedding, error)

	// Ping reports whether the storage medium is reachable.
	Ping(ctx context.Context) error
}

// Snapshot is a point-in-time view of the gallery.
type Snapshot struct {
	// Identities are sorted by label.
	Identities []domain.Identity
	Warnings   []RecordWarning
}

// RecordWarning describes a record that was skipped while loading.
type RecordWarning struct {
	Label string
	Err   error
}

func (w RecordWarning) Error() string {
	return fmt.Sprintf("record %q: %v", w.Label, w.Err)
}

func (w RecordWarning) Unwrap() error {
	return w.Err
}

// Samples counts embeddings across all identities.
func (s *Snapshot) Samples() int {
	n := 0
	for _, id := range s.Identities {
		n += len(id.Embeddings)
	}
	return n
}

// Labels returns the identity labels in snapshot order.
func (s *Snapshot) Labels() []string {
	labels := make([]string, len(s.Identities))
	for i, id := range s.Identities {
		labels[i] = id.Label
	}
	return labels
}
