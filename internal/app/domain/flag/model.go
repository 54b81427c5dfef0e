package flag

import "time"

// Flag is a feature switch stored in the database and served from an
// in-memory cache. RolloutPercent gates gradual rollouts: 0 means follow
// Enabled as-is, otherwise a stable per-subject hash below the percentage
// enables the flag.
type Flag struct {
	Key            string
	Description    string
	Enabled        bool
	RolloutPercent int
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
