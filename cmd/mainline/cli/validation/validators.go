// Package validation provides input validation for values that end up in
// file paths or git refs. It has no dependencies to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// pathSafeRegex matches alphanumeric characters, underscores, and hyphens only.
// Used to validate IDs that will be used in file paths.
var pathSafeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// branchSegmentRegex matches a single segment of a branch name.
var branchSegmentRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateSessionID validates that a session ID contains only safe characters
// for paths. This prevents path traversal when the ID is used to build file
// names under the state directory.
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if !pathSafeRegex.MatchString(id) {
		return fmt.Errorf("invalid session ID %q: must be alphanumeric with underscores/hyphens only", id)
	}
	return nil
}

// ValidateBranchName validates that a branch name is a plausible git ref and
// contains no path traversal. Slashes are allowed between segments
// (e.g. "feature/login"), but each segment must start with an alphanumeric
// character.
func ValidateBranchName(name string) error {
	if name == "" {
		return errors.New("branch name cannot be empty")
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("invalid branch name %q: leading or trailing slash", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid branch name %q: contains '..'", name)
	}
	if strings.ContainsAny(name, " ~^:?*[\\\t\n") {
		return fmt.Errorf("invalid branch name %q: contains characters git refuses in refs", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if !branchSegmentRegex.MatchString(seg) {
			return fmt.Errorf("invalid branch name %q: segment %q is not a valid ref component", name, seg)
		}
		if strings.HasSuffix(seg, ".lock") {
			return fmt.Errorf("invalid branch name %q: segment ends with '.lock'", name)
		}
	}
	return nil
}
