// Package diff restricts findings to the lines a unified diff adds or
// changes.
package diff

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	gitdiff "github.com/speakeasy-api/git-diff-parser"

	"github.com/gnolang/patlint/internal/types"
)

// Changes holds the added or modified lines of each file of a diff, keyed
// by the new file path.
type Changes struct {
	files map[string]map[int]bool
}

// Parse reads the output of git diff. Hunks are walked line by line, so
// both -U0 and context diffs give exact line sets.
func Parse(r io.Reader) (*Changes, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read diff: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return &Changes{files: map[string]map[int]bool{}}, nil
	}

	parsed, errs := gitdiff.Parse(string(data))
	if len(errs) != 0 {
		return nil, fmt.Errorf("parse diff: %v", errs[0])
	}

	c := &Changes{files: map[string]map[int]bool{}}
	for _, fd := range parsed.FileDiff {
		if fd.IsBinary || fd.Type == gitdiff.FileDiffTypeDeleted || fd.ToFile == "" {
			continue
		}
		name := filepath.ToSlash(filepath.Clean(fd.ToFile))
		lines := c.files[name]
		if lines == nil {
			lines = map[int]bool{}
			c.files[name] = lines
		}
		for _, h := range fd.Hunks {
			markHunk(lines, h)
		}
	}
	return c, nil
}

// markHunk records the new side lines a hunk adds or modifies. Changes
// past the hunk's new line count come from trailing lines of the input and
// are ignored.
func markHunk(lines map[int]bool, h gitdiff.Hunk) {
	line, last := h.StartLineNumberNew, h.StartLineNumberNew+h.CountNew
	for _, ch := range h.ChangeList {
		if line >= last {
			return
		}
		switch ch.Type {
		case gitdiff.ContentChangeTypeAdd, gitdiff.ContentChangeTypeModify:
			lines[line] = true
			line++
		case gitdiff.ContentChangeTypeNOOP:
			if strings.HasPrefix(ch.From, `\`) {
				continue // "\ No newline at end of file"
			}
			line++
		}
	}
}

// Files lists the changed files in lexical order.
func (c *Changes) Files() []string {
	out := make([]string, 0, len(c.files))
	for f := range c.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether line of path was added or changed. Paths match
// when one is a suffix of the other on a path element boundary, so
// repository relative diff paths match scan paths under any root. When
// several diff paths match, the longest one is used.
func (c *Changes) Contains(path string, line int) bool {
	lines := c.lookup(path)
	return lines[line]
}

func (c *Changes) lookup(path string) map[int]bool {
	path = filepath.ToSlash(filepath.Clean(path))
	if lines, ok := c.files[path]; ok {
		return lines
	}
	// the longest matching name wins, ties go to the lexically first
	best := ""
	for name := range c.files {
		if !strings.HasSuffix(path, "/"+name) && !strings.HasSuffix(name, "/"+path) {
			continue
		}
		if best == "" || len(name) > len(best) || (len(name) == len(best) && name < best) {
			best = name
		}
	}
	if best == "" {
		return nil
	}
	return c.files[best]
}

// Filter keeps the findings that start on a changed line.
func (c *Changes) Filter(findings []types.Finding) []types.Finding {
	var kept []types.Finding
	for _, f := range findings {
		if c.Contains(f.Path, f.Span.Start.Line) {
			kept = append(kept, f)
		}
	}
	return kept
}
