// Package versioncompare decides whether a remote release is newer than the installed one.
//
// Versions are opaque strings. The default Lexicographic policy compares them with Go's
// string ordering, so "10.0.0" sorts before "9.0.0". The Semantic policy orders
// major.minor.patch numerically and is opt-in.
package versioncompare

import (
	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// Sentinel is the version used when a version is unknown, e.g. because the remote could not be reached
// or no version marker is installed yet.
const Sentinel = "0.0.0"

// Policy orders two versions.
type Policy interface {
	// IsNewer reports whether remote should replace local.
	IsNewer(remote, local string) bool
	Name() string
}

// Lexicographic compares versions as plain strings.
type Lexicographic struct{}

func (Lexicographic) IsNewer(remote, local string) bool {
	return IsNewer(remote, local)
}

func (Lexicographic) Name() string {
	return "lexicographic"
}

// Semantic compares versions numerically by their components.
// Versions which do not parse are compared like Lexicographic does.
type Semantic struct{}

func (Semantic) IsNewer(remote, local string) bool {
	if remote == Sentinel {
		return false
	}
	r, errRemote := goversion.NewVersion(remote)
	l, errLocal := goversion.NewVersion(local)
	if errRemote != nil || errLocal != nil {
		log.Debugf("falling back to string comparison for %q and %q", remote, local)
		return IsNewer(remote, local)
	}
	return r.GreaterThan(l)
}

func (Semantic) Name() string {
	return "semver"
}

// IsNewer reports whether remote is ordered after local by string comparison.
// A remote equal to Sentinel never counts as newer since it signals a failed lookup.
func IsNewer(remote, local string) bool {
	if remote == Sentinel {
		return false
	}
	return remote > local
}

// ForName returns the policy with the given name, Lexicographic for unknown names.
func ForName(name string) Policy {
	switch name {
	case Semantic{}.Name():
		return Semantic{}
	default:
		return Lexicographic{}
	}
}
