package core

import (
	"regexp"
	"strings"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// unsafeBranchChars matches characters that are not safe in git branch names.
var unsafeBranchChars = regexp.MustCompile(`[^a-zA-Z0-9._/-]`)

// collapseDashes collapses consecutive dashes into a single dash.
var collapseDashes = regexp.MustCompile(`-{2,}`)

// FormatBranchName applies a pattern with {kind}, {task}, {story}, and
// {description} placeholders to produce a branch name. If pattern is empty,
// the default "{kind}/{task}-{description}-{story}" shape is used.
func FormatBranchName(pattern string, kind models.TaskKind, taskID, storyID, description string) string {
	if pattern == "" {
		pattern = "{kind}/{task}-{description}-{story}"
	}

	result := pattern
	result = strings.ReplaceAll(result, "{kind}", string(kind))
	result = strings.ReplaceAll(result, "{task}", taskID)
	result = strings.ReplaceAll(result, "{story}", storyID)
	result = strings.ReplaceAll(result, "{description}", sanitizeBranchSegment(description))

	// An empty description leaves doubled separators behind.
	result = collapseDashes.ReplaceAllString(result, "-")
	return result
}

// sanitizeBranchSegment replaces spaces and special characters with dashes,
// collapses consecutive dashes, trims leading/trailing dashes, and lowercases
// the result. The output is safe for use as a git branch name segment.
func sanitizeBranchSegment(s string) string {
	s = strings.ToLower(s)
	s = unsafeBranchChars.ReplaceAllString(s, "-")
	s = collapseDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}
