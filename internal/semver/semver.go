// Package semver handles the versions of peershare binaries and index servers.
package semver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
)

var (
	ErrParse = errors.New("could not parse provided string into semantic version")

	versionRe = regexp.MustCompile(`^v(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)$`)
)

type Comparison int

const (
	CompareEqual Comparison = iota
	CompareOldMajor
	CompareNewMajor
	CompareOldMinor
	CompareNewMinor
	CompareOldPatch
	CompareNewPatch
)

// Compatible reports whether the compared versions share a major version.
func (c Comparison) Compatible() bool {
	return c != CompareOldMajor && c != CompareNewMajor
}

type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// Parse parses strings of the form vMAJOR.MINOR.PATCH.
func Parse(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, ErrParse
	}
	var parts [3]int
	for i, p := range m[1:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("parsing version component %q: %w", p, err)
		}
		parts[i] = n
	}
	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("semver: %q: %v", s, err))
	}
	return v
}

func (sv Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", sv.Major, sv.Minor, sv.Patch)
}

// Compare compares the version against the provided oracle.
func (sv Version) Compare(oracle Version) Comparison {
	switch {
	case sv.Major < oracle.Major:
		return CompareOldMajor
	case sv.Major > oracle.Major:
		return CompareNewMajor
	case sv.Minor < oracle.Minor:
		return CompareOldMinor
	case sv.Minor > oracle.Minor:
		return CompareNewMinor
	case sv.Patch < oracle.Patch:
		return CompareOldPatch
	case sv.Patch > oracle.Patch:
		return CompareNewPatch
	default:
		return CompareEqual
	}
}

// GetIndexVersion fetches the version of the index server at addr.
func GetIndexVersion(ctx context.Context, addr string) (Version, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/version", addr), nil)
	if err != nil {
		return Version{}, fmt.Errorf("creating version request: %w", err)
	}
	r, err := http.DefaultClient.Do(req)
	if err != nil {
		return Version{}, fmt.Errorf("fetching the version of the index server: %w", err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		return Version{}, fmt.Errorf("fetching the version of the index server: unexpected status %d", r.StatusCode)
	}
	var version Version
	if err := json.NewDecoder(r.Body).Decode(&version); err != nil {
		return Version{}, fmt.Errorf("decoding version response from index server: %w", err)
	}
	return version, nil
}
