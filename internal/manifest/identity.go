// Package manifest assigns run identity and writes the closing run manifest.
package manifest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLabel is used when the caller supplies no usable run label.
const DefaultLabel = "run"

const runKeyTimeLayout = "2006-01-02_150405Z"

var unsafeLabelChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Identity names one pipeline invocation.
type Identity struct {
	RunID     string
	ShortID   string
	RunKey    string
	RunLabel  string
	StartedAt time.Time
}

// NewIdentity builds a fresh identity. RunID and ShortID come from independent
// UUIDs so the key suffix reveals nothing about the run id.
func NewIdentity(now time.Time, label string) Identity {
	started := now.UTC()
	safe := SanitizeLabel(label)
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return Identity{
		RunID:     uuid.NewString(),
		ShortID:   short,
		RunKey:    fmt.Sprintf("%s__%s__%s", started.Format(runKeyTimeLayout), safe, short),
		RunLabel:  safe,
		StartedAt: started,
	}
}

// SanitizeLabel keeps [A-Za-z0-9_-], turning other runs into "_".
func SanitizeLabel(label string) string {
	safe := unsafeLabelChars.ReplaceAllString(strings.TrimSpace(label), "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return DefaultLabel
	}
	return safe
}
