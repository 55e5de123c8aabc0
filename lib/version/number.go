// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"strconv"
	"strings"
)

// MinimumHostProtocol is the oldest host protocol this client speaks.
var MinimumHostProtocol = Number{Major: 1, Minor: 0, Patch: -1}

// Number is a dotted version. Segments absent from the parsed string
// are -1.
type Number struct {
	Major int
	Minor int
	Patch int
}

// Parse reads "major[.minor[.patch]]". Segments must be non-negative
// decimal integers.
func Parse(text string) (Number, error) {
	number := Number{Major: -1, Minor: -1, Patch: -1}
	text = strings.TrimSpace(text)
	if text == "" {
		return number, fmt.Errorf("empty version")
	}
	segments := strings.Split(text, ".")
	if len(segments) > 3 {
		return number, fmt.Errorf("version %q has more than three segments", text)
	}
	targets := []*int{&number.Major, &number.Minor, &number.Patch}
	for i, segment := range segments {
		value, err := strconv.Atoi(segment)
		if err != nil || value < 0 || strings.HasPrefix(segment, "+") {
			return Number{Major: -1, Minor: -1, Patch: -1}, fmt.Errorf("version %q: bad segment %q", text, segment)
		}
		*targets[i] = value
	}
	return number, nil
}

// Valid reports whether n has at least a major segment.
func (n Number) Valid() bool {
	return n.Major >= 0
}

// String formats the present segments. An invalid number formats as
// the empty string.
func (n Number) String() string {
	switch {
	case !n.Valid():
		return ""
	case n.Minor < 0:
		return strconv.Itoa(n.Major)
	case n.Patch < 0:
		return fmt.Sprintf("%d.%d", n.Major, n.Minor)
	default:
		return fmt.Sprintf("%d.%d.%d", n.Major, n.Minor, n.Patch)
	}
}

// AtLeast reports whether n >= minimum, treating missing segments as
// zero. An invalid n is never at least anything.
func (n Number) AtLeast(minimum Number) bool {
	if !n.Valid() {
		return false
	}
	left := [3]int{n.Major, max(n.Minor, 0), max(n.Patch, 0)}
	right := [3]int{max(minimum.Major, 0), max(minimum.Minor, 0), max(minimum.Patch, 0)}
	for i := range left {
		if left[i] != right[i] {
			return left[i] > right[i]
		}
	}
	return true
}
