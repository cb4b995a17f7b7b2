// Package validator implements three pure,
// static-screening entry points over function input, metadata, and code.
// All failures are eventmodel.Error{Kind: Validation} carrying the rule
// name that fired.
package validator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

const maxPayloadBytes = 1_000_000

var (
	nameRe    = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)
	tagRe     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,20}$`)
	versionRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// ValidateInput implements validate_input: the payload must be a JSON
// object, serialize to at most 1 MB, and contain no dangerous substring in
// any string value or object key, recursively.
func ValidateInput(input map[string]interface{}) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return eventmodel.ValidationError("invalid-json", "input must be valid JSON")
	}
	if len(raw) > maxPayloadBytes {
		return eventmodel.ValidationError("input-too-large", "input exceeds 1MB limit")
	}
	return scanDangerous(input, dangerousInputPatterns, "input")
}

func scanDangerous(v interface{}, patterns []string, context string) error {
	switch t := v.(type) {
	case string:
		if pat, found := firstMatch(t, patterns); found {
			return eventmodel.ValidationError(pat, fmt.Sprintf("%s contains potentially dangerous pattern: %s", context, pat))
		}
	case []interface{}:
		for _, item := range t {
			if err := scanDangerous(item, patterns, context); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		for k, val := range t {
			if pat, found := firstMatch(k, patterns); found {
				return eventmodel.ValidationError(pat, fmt.Sprintf("%s key contains potentially dangerous pattern: %s", context, pat))
			}
			if err := scanDangerous(val, patterns, context); err != nil {
				return err
			}
		}
	}
	return nil
}

func firstMatch(s string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return p, true
		}
	}
	return "", false
}

// ValidateMetadata checks every metadata field against its constraint,
// returning the first violation found.
func ValidateMetadata(meta *eventmodel.FunctionMetadata) error {
	if meta.Version == "" {
		return eventmodel.ValidationError("version-required", "version is required")
	}
	if !versionRe.MatchString(meta.Version) {
		return eventmodel.ValidationError("version-format", "version must be semver (e.g. 1.0.0)")
	}
	if meta.Description == "" {
		return eventmodel.ValidationError("description-required", "description is required")
	}
	if len(meta.Description) > 1000 {
		return eventmodel.ValidationError("description-too-long", "description exceeds 1000 characters")
	}
	if len(meta.Author) > 100 {
		return eventmodel.ValidationError("author-too-long", "author exceeds 100 characters")
	}
	if len(meta.Tags) > 10 {
		return eventmodel.ValidationError("too-many-tags", "at most 10 tags allowed")
	}
	for _, tag := range meta.Tags {
		if !tagRe.MatchString(tag) {
			return eventmodel.ValidationError("tag-format", fmt.Sprintf("invalid tag: %s", tag))
		}
	}
	if len(meta.Dependencies) > 20 {
		return eventmodel.ValidationError("too-many-dependencies", "at most 20 dependencies allowed")
	}
	for name, version := range meta.Dependencies {
		if name == "" || len(name) > 50 {
			return eventmodel.ValidationError("dependency-name", "invalid dependency name")
		}
		if version == "" || len(version) > 20 {
			return eventmodel.ValidationError("dependency-version", "invalid dependency version")
		}
	}
	if meta.Runtime != "" && !allowedRuntimes[string(meta.Runtime)] {
		return eventmodel.ValidationError("invalid-runtime", fmt.Sprintf("invalid runtime: %s", meta.Runtime))
	}
	for perm := range meta.Permissions {
		if !allowedPermissions[string(perm)] {
			return eventmodel.ValidationError("invalid-permission", fmt.Sprintf("invalid permission: %s", perm))
		}
	}
	return nil
}

// ValidateName enforces the function-name rule: 3-50 chars, [A-Za-z0-9_-].
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return eventmodel.ValidationError("name-format", "name must be 3-50 chars of [A-Za-z0-9_-]")
	}
	return nil
}

// ValidateCode checks that code is non-empty, at most 1MB, contains an
// export marker, and contains no banned substring from the three pattern
// lists (process/host-escape, eval/dynamic-code,
// infinite-loop/resource-exhaustion).
func ValidateCode(code string) error {
	if code == "" {
		return eventmodel.ValidationError("code-empty", "code cannot be empty")
	}
	if len(code) > maxPayloadBytes {
		return eventmodel.ValidationError("code-too-large", "code exceeds 1MB limit")
	}

	if pat, found := firstMatch(code, dangerousCodePatterns); found {
		return eventmodel.ValidationError(pat, fmt.Sprintf("code contains potentially dangerous pattern: %s", pat))
	}

	hasExport := false
	for _, marker := range exportMarkers {
		if strings.Contains(code, marker) {
			hasExport = true
			break
		}
	}
	if !hasExport {
		return eventmodel.ValidationError("missing-export", "function must have a default export")
	}

	if pat, found := firstMatch(code, infiniteLoopPatterns); found {
		return eventmodel.ValidationError(pat, fmt.Sprintf("code contains potential infinite loop: %s", pat))
	}
	if pat, found := firstMatch(code, resourceExhaustionPatterns); found {
		return eventmodel.ValidationError(pat, fmt.Sprintf("code contains potential resource exhaustion: %s", pat))
	}
	if pat, found := firstMatch(code, recursivePatterns); found {
		return eventmodel.ValidationError(pat, fmt.Sprintf("code contains potential infinite recursion: %s", pat))
	}

	return nil
}
