package domain

import (
	"fmt"
	"time"
)

// MaxLabelLength bounds identity labels so they stay valid file names on
// every supported filesystem.
const MaxLabelLength = 128

// Embedding is a face descriptor produced by the embedding model.
// Embeddings are compared by distance only, never by equality.
type Embedding []float32

// Clone returns a copy that does not share the backing array.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Identity is one enrolled person with every sample captured for them.
type Identity struct {
	Label      string      `json:"label"`
	Embeddings []Embedding `json:"descriptors"`
}

// AttendanceEvent records that an identity was seen on a given day.
type AttendanceEvent struct {
	Label string    `json:"employeeId"`
	Date  string    `json:"date"`
	At    time.Time `json:"at"`
}

// ValidateLabel rejects labels that are empty or unsafe as a storage key.
// Allowed characters are ASCII letters, digits, '.', '_' and '-'; a label
// may not start with a dot.
func ValidateLabel(label string) error {
	if label == "" {
		return ErrInvalidLabel.WithError(fmt.Errorf("label is empty"))
	}
	if len(label) > MaxLabelLength {
		return ErrInvalidLabel.WithError(fmt.Errorf("label longer than %d bytes", MaxLabelLength))
	}
	if label[0] == '.' {
		return ErrInvalidLabel.WithError(fmt.Errorf("label %q starts with a dot", label))
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return ErrInvalidLabel.WithError(fmt.Errorf("label %q contains %q", label, c))
		}
	}
	return nil
}

// ValidateEmbeddings checks that the set is non-empty and that every
// embedding has the same length. A positive dim also pins that length.
func ValidateEmbeddings(embeddings []Embedding, dim int) error {
	if len(embeddings) == 0 {
		return ErrEmptyEmbeddingSet
	}

	want := dim
	if want <= 0 {
		want = len(embeddings[0])
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return ErrDimensionMismatch.WithError(fmt.Errorf("embedding %d is empty", i))
		}
		if len(e) != want {
			return ErrDimensionMismatch.WithError(fmt.Errorf("embedding %d has %d values, want %d", i, len(e), want))
		}
	}
	return nil
}
