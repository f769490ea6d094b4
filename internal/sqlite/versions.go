package sqlite

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions orders two schema version strings. When both sides parse
// as semantic versions they are compared semantically, so "10.0.0" sorts
// above "2.0.0". Otherwise the comparison falls back to plain bytewise
// ordering. The fallback is per pair, documented here and pinned by tests:
// mixing semver and non-semver versions under one schema name gives the
// bytewise order for the mixed pairs.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}
