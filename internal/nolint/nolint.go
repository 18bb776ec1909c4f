// Package nolint reads suppression comments of the form "//nolint" or
// "//nolint:rule-a,rule-b" from a parsed file.
package nolint

import (
	"fmt"
	"strings"

	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

const nolintPrefix = "nolint"

// Manager manages nolint scopes of one file and checks if a line is
// nolinted.
type Manager struct {
	scopes []nolintScope
}

// nolintScope is an inclusive line range where nolint applies.
type nolintScope struct {
	rules map[string]struct{} // empty => applies to all rules
	start int
	end   int
}

// ParseComments collects the nolint scopes of f.
func ParseComments(f *tree.File) *Manager {
	manager := &Manager{}
	if len(f.Comments) == 0 {
		return manager
	}
	stmtMap := indexStatementsByLine(f.Root)
	firstLine := firstCodeLine(f.Root)

	for _, c := range f.Comments {
		ns, err := parseComment(c, stmtMap, firstLine, f.Root)
		if err != nil {
			// ignore invalid nolint comments
			continue
		}
		manager.scopes = append(manager.scopes, ns)
	}
	return manager
}

// parseComment parses a single comment and determines its scope.
func parseComment(c tree.Comment, stmtMap map[int]*tree.Node, firstLine int, root *tree.Node) (nolintScope, error) {
	var ns nolintScope

	text := strings.TrimPrefix(c.Text, "//")
	if len(text) == len(c.Text) {
		return ns, fmt.Errorf("not a line comment")
	}
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, nolintPrefix) {
		return ns, fmt.Errorf("not a nolint comment")
	}
	rest := text[len(nolintPrefix):]

	// Either a colon and a rule list, or nothing for all rules.
	if len(rest) > 0 && rest[0] != ':' {
		return ns, fmt.Errorf("invalid nolint comment format")
	}
	if len(rest) > 0 {
		rest = strings.TrimSpace(rest[1:])
		if rest == "" {
			return ns, fmt.Errorf("invalid nolint comment: no rules specified after colon")
		}
	}
	ns.rules = parseIgnoreRuleNames(rest)
	line := c.Span.Start.Line

	// Before any code: the whole file.
	if firstLine == 0 || line < firstLine {
		ns.start = 1
		ns.end = root.Span.End.Line
		return ns, nil
	}

	// Inline: the statement the comment trails.
	if stmt, exists := stmtMap[line]; exists && stmt.Span.Start.Offset < c.Span.Start.Offset {
		ns.start = line
		ns.end = stmt.Span.End.Line
		return ns, nil
	}

	// Standalone: the comment line through the statement or declaration
	// on the next line.
	ns.start = line
	ns.end = line + 1
	if stmt, exists := stmtMap[line+1]; exists {
		ns.end = stmt.Span.End.Line
	}
	return ns, nil
}

// parseIgnoreRuleNames parses the rule list from the nolint comment.
func parseIgnoreRuleNames(text string) map[string]struct{} {
	rulesMap := make(map[string]struct{})
	if text == "" {
		return rulesMap
	}
	for _, rule := range strings.Split(text, ",") {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			rulesMap[rule] = struct{}{}
		}
	}
	return rulesMap
}

// indexStatementsByLine maps each line to the first statement or member
// starting on it.
func indexStatementsByLine(root *tree.Node) map[int]*tree.Node {
	stmtMap := make(map[int]*tree.Node)
	tree.Walk(root, func(n *tree.Node) bool {
		if !n.Kind.IsStatementList() {
			return true
		}
		for _, stmt := range n.Children {
			line := stmt.Span.Start.Line
			if _, exists := stmtMap[line]; !exists {
				stmtMap[line] = stmt
			}
		}
		return true
	})
	return stmtMap
}

func firstCodeLine(root *tree.Node) int {
	if root == nil || len(root.Children) == 0 {
		return 0
	}
	return root.Children[0].Span.Start.Line
}

// IsNolint reports whether rule is suppressed on line.
func (m *Manager) IsNolint(line int, rule string) bool {
	for _, ns := range m.scopes {
		if line < ns.start || line > ns.end {
			continue
		}
		if len(ns.rules) == 0 {
			return true
		}
		if _, exists := ns.rules[rule]; exists {
			return true
		}
	}
	return false
}

// Filter drops the findings suppressed by a nolint comment.
func (m *Manager) Filter(findings []types.Finding) []types.Finding {
	if len(m.scopes) == 0 {
		return findings
	}
	kept := findings[:0]
	for _, f := range findings {
		if !m.IsNolint(f.Span.Start.Line, f.Rule) {
			kept = append(kept, f)
		}
	}
	return kept
}
