package core

import (
	"fmt"
	"regexp"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// commitSubjectPattern matches conventional commit subjects: a kind prefix,
// an optional scope, then the summary.
var commitSubjectPattern = regexp.MustCompile(`^(feat|fix|refactor|test|docs|chore)(\([a-z0-9./-]+\))?!?: .+`)

// Verdict is the outcome of evaluating a task against its quality gates.
type Verdict struct {
	Passed   bool
	Failures []string
}

// GateAggregator evaluates whether a task has met every completion gate.
type GateAggregator struct {
	// requireCommits fails tasks that recorded no commits at all.
	requireCommits bool
}

// NewGateAggregator returns an aggregator. When requireCommits is true a
// task with an empty commit list cannot pass.
func NewGateAggregator(requireCommits bool) *GateAggregator {
	return &GateAggregator{requireCommits: requireCommits}
}

// Evaluate runs every completion gate against the task and collects all
// failures rather than stopping at the first, so a single run tells the
// caller everything left to fix.
func (g *GateAggregator) Evaluate(task *models.Task) Verdict {
	var failures []string

	failures = append(failures, g.checkTests(task)...)
	failures = append(failures, g.checkCoverage(task)...)
	failures = append(failures, g.checkGates(task)...)
	failures = append(failures, g.checkCommits(task)...)

	return Verdict{
		Passed:   len(failures) == 0,
		Failures: failures,
	}
}

func (g *GateAggregator) checkTests(task *models.Task) []string {
	tr := task.Tests
	if tr.Total == 0 {
		return []string{"no test results recorded"}
	}
	if !tr.Passing {
		return []string{fmt.Sprintf("tests failing (%d total)", tr.Total)}
	}
	return nil
}

func (g *GateAggregator) checkCoverage(task *models.Task) []string {
	tr := task.Tests
	if tr.CoveragePercentage < tr.CoverageBaseline {
		return []string{fmt.Sprintf(
			"coverage %.1f%% is below the %.1f%% baseline",
			tr.CoveragePercentage, tr.CoverageBaseline,
		)}
	}
	return nil
}

func (g *GateAggregator) checkGates(task *models.Task) []string {
	var failures []string
	checks := []struct {
		name   string
		result models.CheckResult
	}{
		{"lint", task.QualityGates.Lint},
		{"type_check", task.QualityGates.TypeCheck},
		{"security", task.QualityGates.Security},
		{"acceptance_criteria", task.QualityGates.AcceptanceCriteria},
	}
	for _, c := range checks {
		switch c.result.Status {
		case models.CheckPassed:
		case models.CheckNotRun:
			failures = append(failures, fmt.Sprintf("%s has not run", c.name))
		default:
			msg := fmt.Sprintf("%s failed", c.name)
			if c.result.Detail != "" {
				msg += ": " + c.result.Detail
			}
			failures = append(failures, msg)
		}
	}
	return failures
}

func (g *GateAggregator) checkCommits(task *models.Task) []string {
	if len(task.Commits) == 0 {
		if g.requireCommits {
			return []string{"no commits recorded"}
		}
		return nil
	}

	var failures []string
	for _, c := range task.Commits {
		if !commitSubjectPattern.MatchString(c.Message) {
			failures = append(failures, fmt.Sprintf(
				"commit %s subject %q does not follow kind(scope): summary",
				shortSHA(c.SHA), c.Message,
			))
		}
	}
	return failures
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
