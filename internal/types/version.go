package types

import (
	"strings"

	"golang.org/x/mod/semver"
)

// CanonicalVersion turns a platform version such as "17" or "1.8" into the
// semver form used for comparisons. It returns "" for malformed input.
func CanonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// Available reports whether a member tagged since is present on target.
// Untagged members are always present; an empty target accepts everything.
func Available(since, target string) bool {
	if since == "" || target == "" {
		return true
	}
	s, t := CanonicalVersion(since), CanonicalVersion(target)
	if s == "" || t == "" {
		return false
	}
	return semver.Compare(s, t) <= 0
}
