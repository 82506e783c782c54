// Package validator lints flow definitions before they are served.
// The interpreter tolerates every issue reported here at runtime; the lint exists
// to surface authoring mistakes early.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/flowrun/pkg/domain"
)

// Severity grades an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of the lint.
type Issue struct {
	Severity Severity
	NodeID   string
	Message  string
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.NodeID, i.Message)
}

// Lint inspects flow and returns its issues, errors first, then by node id.
func Lint(flow *domain.Flow) []Issue {
	var issues []Issue
	add := func(sev Severity, node, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, NodeID: node, Message: fmt.Sprintf(format, args...)})
	}

	start, err := flow.StartNode()
	if err != nil {
		add(SeverityError, "", "%v", err)
	}

	for _, e := range flow.Edges {
		if _, ok := flow.Node(e.Source); !ok {
			add(SeverityError, e.Source, "edge source does not exist (target %q)", e.Target)
		}
		if _, ok := flow.Node(e.Target); !ok {
			add(SeverityError, e.Source, "edge points to missing node %q", e.Target)
		}
	}

	for _, node := range flow.NodeList() {
		for _, target := range legacyTargets(node) {
			if _, ok := flow.Node(target); !ok {
				add(SeverityError, node.ID, "connection points to missing node %q", target)
			}
		}

		switch node.Type {
		case domain.NodeTypeEnd:
		case domain.NodeTypeCondition:
			if !hasBranch(flow, node, domain.LabelYes) && !hasBranch(flow, node, domain.LabelNo) {
				add(SeverityWarning, node.ID, "condition has no Yes or No branch; any input completes the run")
			}
		default:
			if len(successors(flow, node)) == 0 {
				add(SeverityWarning, node.ID, "dead end: run completes here without an end node")
			}
		}
	}

	if err == nil {
		reached := reachable(flow, start.ID)
		for _, node := range flow.NodeList() {
			if !reached[node.ID] {
				add(SeverityWarning, node.ID, "unreachable from start node %q", start.ID)
			}
		}
	}

	sort.SliceStable(issues, func(a, b int) bool {
		if issues[a].Severity != issues[b].Severity {
			return issues[a].Severity == SeverityError
		}
		return issues[a].NodeID < issues[b].NodeID
	})
	return issues
}

// Validate returns an error listing every error-level issue, or nil.
func Validate(flow *domain.Flow) error {
	var errs []string
	for _, issue := range Lint(flow) {
		if issue.Severity == SeverityError {
			errs = append(errs, issue.String())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("flow %s: found %d errors:\n- %s", flow.ID, len(errs), strings.Join(errs, "\n- "))
	}
	return nil
}

func legacyTargets(node domain.Node) []string {
	targets := append([]string(nil), node.Connections...)
	if data, ok := node.Data.(domain.ConditionData); ok {
		for _, t := range []string{data.YesConnection, data.NoConnection} {
			if t != "" {
				targets = append(targets, t)
			}
		}
	}
	return targets
}

func hasBranch(flow *domain.Flow, node domain.Node, label string) bool {
	for _, e := range flow.Edges {
		if e.Source == node.ID && e.Label == label {
			return true
		}
	}
	data, _ := node.Data.(domain.ConditionData)
	switch label {
	case domain.LabelYes:
		return data.YesConnection != ""
	case domain.LabelNo:
		return data.NoConnection != ""
	}
	return false
}

// successors lists every node id the interpreter could move to from node.
func successors(flow *domain.Flow, node domain.Node) []string {
	var out []string
	for _, e := range flow.Edges {
		if e.Source == node.ID {
			out = append(out, e.Target)
		}
	}
	return append(out, legacyTargets(node)...)
}

func reachable(flow *domain.Flow, from string) map[string]bool {
	visited := map[string]bool{}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		node, ok := flow.Node(id)
		if !ok {
			continue
		}
		visited[id] = true
		for _, next := range successors(flow, node) {
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}
	return visited
}
