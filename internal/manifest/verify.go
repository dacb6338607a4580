package manifest

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// VerifyResult lists every artifact whose bytes no longer match the manifest.
type VerifyResult struct {
	Manifest   domain.RunManifest `json:"-"`
	Checked    int                `json:"checked"`
	Mismatches []string           `json:"mismatches,omitempty"`
}

// OK reports whether every artifact matched.
func (r VerifyResult) OK() bool { return len(r.Mismatches) == 0 }

// Verify recomputes every artifact digest listed in runDir's manifest.
func Verify(runDir string) (VerifyResult, error) {
	m, _, err := Read(runDir)
	if err != nil {
		return VerifyResult{}, err
	}
	if m.Schema != Schema {
		return VerifyResult{}, errors.Newf("unsupported manifest schema %q", m.Schema)
	}

	names := make([]string, 0, len(m.ArtifactsIntegrity))
	for name := range m.ArtifactsIntegrity {
		names = append(names, name)
	}
	sort.Strings(names)

	result := VerifyResult{Manifest: m}
	for _, name := range names {
		want := m.ArtifactsIntegrity[name]
		got, err := HashFile(filepath.Join(runDir, filepath.FromSlash(want.Path)))
		result.Checked++
		switch {
		case err != nil:
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: %v", name, err))
		case got.SHA256 != want.SHA256:
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: sha256 %s, manifest says %s", name, got.SHA256, want.SHA256))
		case got.SizeBytes != want.SizeBytes:
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: size %d, manifest says %d", name, got.SizeBytes, want.SizeBytes))
		}
	}
	return result, nil
}
