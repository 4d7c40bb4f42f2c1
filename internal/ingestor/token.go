package ingestor

import "github.com/google/uuid"

// BatchTokenGenerator generates a correlation token for one batch
// ingestion run (process-file / process-json), attached to that run's
// progress, completion and per-line failure slog lines and surfaced to
// callers as a trace id. See
// UUIDv7Generator (production) and FixedGenerator (tests).
type BatchTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 batch tokens. Stateless
// and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a fresh UUIDv7, hyphenated.
func (UUIDv7Generator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// FixedGenerator returns the same predetermined token every call,
// enabling deterministic batch-correlation ids in golden-file tests.
type FixedGenerator struct {
	Token string
}

// Generate returns the fixed token.
func (g FixedGenerator) Generate() string {
	return g.Token
}
