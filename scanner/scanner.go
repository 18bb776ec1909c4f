// Package scanner discovers the source files a scan should read.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type FileInfo struct {
	Path string
	Size int64
}

type Scanner struct {
	rootDir    string
	extensions []string
	ignore     []string
}

func New(rootDir string, extensions ...string) *Scanner {
	return &Scanner{
		rootDir:    rootDir,
		extensions: extensions,
	}
}

// Ignore skips paths matching any of the glob patterns. A pattern is
// matched against the path relative to the root and against every path
// element, so "build" skips any directory named build and "*_gen.java"
// skips generated files anywhere.
func (s *Scanner) Ignore(patterns ...string) *Scanner {
	s.ignore = append(s.ignore, patterns...)
	return s
}

// Scan walks the root and returns the target files in lexical order. A
// root naming a single file yields that file if it is a target.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.Walk(s.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if path != s.rootDir && s.isIgnored(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		if s.isTargetFile(path) {
			files = append(files, FileInfo{Path: path, Size: info.Size()})
		}
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

func (s *Scanner) isIgnored(path string) bool {
	if len(s.ignore) == 0 {
		return false
	}
	rel, err := filepath.Rel(s.rootDir, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	elems := strings.Split(rel, "/")

	for _, pattern := range s.ignore {
		pattern = strings.TrimSuffix(filepath.ToSlash(pattern), "/")
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		for _, elem := range elems {
			if ok, _ := filepath.Match(pattern, elem); ok {
				return true
			}
		}
	}
	return false
}

func (s *Scanner) isTargetFile(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}

	ext := filepath.Ext(path)
	for _, targetExt := range s.extensions {
		if ext == targetExt {
			return true
		}
	}
	return false
}
