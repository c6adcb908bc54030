package detection

import (
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/feature-match-detector/internal/features"
)

// DefaultMinMatches is the correspondence count required before pose
// estimation runs.
const DefaultMinMatches = 15

// TemplateState is the complete reference configuration a detection call
// works against. A published TemplateState is never modified; updates build
// a new value and swap it in.
type TemplateState struct {
	// ID identifies this configuration; it changes on every update.
	ID uuid.UUID

	// Version increases by one on every published update.
	Version uint64

	// SourcePath is the template image the features were extracted from.
	SourcePath string

	// Features is the template FeatureSet.
	Features *features.FeatureSet

	// MinMatches is the correspondence gate in front of pose estimation.
	MinMatches int

	// LoadedAt is when Features were extracted.
	LoadedAt time.Time
}

// next returns a copy of s with a fresh ID and the following version.
func (s *TemplateState) next() *TemplateState {
	out := &TemplateState{ID: uuid.New(), Version: 1}
	if s != nil {
		cp := *s
		out = &cp
		out.ID = uuid.New()
		out.Version = s.Version + 1
	}
	return out
}
