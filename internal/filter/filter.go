package filter

import (
	"fmt"
	"path"
	"strings"
)

// Type restricts which entry kinds pass the filter.
type Type int

const (
	Any Type = iota
	RegularOnly
	DirOnly
	SymlinkOnly
)

var typeNames = [...]string{
	Any:         "any",
	RegularOnly: "file",
	DirOnly:     "dir",
	SymlinkOnly: "symlink",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// ParseType parses "any", "file", "dir" or "symlink".
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if strings.EqualFold(s, name) {
			return Type(i), nil
		}
	}
	return Any, fmt.Errorf("invalid type %q (use any, file, dir or symlink)", s)
}

// Entry is the view of a scanned filesystem entry the filter decides on.
type Entry struct {
	RelPath   string // slash-separated, relative to the scan root
	Size      uint64
	ModTime   int64 // seconds since epoch
	UID       uint32
	IsDir     bool
	IsSymlink bool
}

// Options is a conjunction of clauses. Zero-valued fields are inactive.
type Options struct {
	NameContains string
	PathContains string
	Type         Type
	MinSize      uint64
	MaxSize      uint64
	NotOlderThan int64   // epoch seconds; entries modified earlier are dropped
	OwnerUID     *uint32 // nil means any owner
}

// Match reports whether e satisfies every active clause. Directories are
// only subject to the name, path and type clauses. Size bounds apply to
// regular files only.
func (o Options) Match(e Entry) bool {
	if o.NameContains != "" && !strings.Contains(path.Base(e.RelPath), o.NameContains) {
		return false
	}
	if o.PathContains != "" && !strings.Contains(e.RelPath, o.PathContains) {
		return false
	}
	switch o.Type {
	case RegularOnly:
		if e.IsDir || e.IsSymlink {
			return false
		}
	case DirOnly:
		if !e.IsDir {
			return false
		}
	case SymlinkOnly:
		if !e.IsSymlink {
			return false
		}
	}

	if e.IsDir {
		return true
	}

	if !e.IsSymlink {
		if o.MinSize > 0 && e.Size < o.MinSize {
			return false
		}
		if o.MaxSize > 0 && e.Size > o.MaxSize {
			return false
		}
	}
	if o.NotOlderThan != 0 && e.ModTime < o.NotOlderThan {
		return false
	}
	if o.OwnerUID != nil && e.UID != *o.OwnerUID {
		return false
	}
	return true
}

// Empty reports whether no clause is active.
func (o Options) Empty() bool {
	return o == Options{}
}

// Rule represents a single include or exclude pattern rule.
type Rule struct {
	Pattern *compiledPattern
	Include bool // true=include, false=exclude
}

// Chain combines Options with an ordered list of rsync-style pattern rules.
// A nil *Chain matches everything.
type Chain struct {
	opts  Options
	rules []Rule
}

// NewChain creates a chain evaluating opts before any pattern rule.
func NewChain(opts Options) *Chain {
	return &Chain{opts: opts}
}

// AddExclude adds an exclude rule for the given pattern.
func (c *Chain) AddExclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: false})
	return nil
}

// AddInclude adds an include rule for the given pattern.
func (c *Chain) AddInclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: true})
	return nil
}

// Empty reports whether the chain has no rules and no active clause.
func (c *Chain) Empty() bool {
	return c == nil || (len(c.rules) == 0 && c.opts.Empty())
}

// Match returns true if e should be INCLUDED. The Options clauses are
// evaluated first; a rejected entry cannot be re-admitted by a rule. Among
// the rules the first match wins, and no match means include.
func (c *Chain) Match(e Entry) bool {
	if c == nil {
		return true
	}
	if !c.opts.Match(e) {
		return false
	}
	return c.ruleIncludes(e.RelPath, e.IsDir)
}

// PruneDir reports whether the directory at relPath is excluded by a pattern
// rule, in which case nothing beneath it is visited.
func (c *Chain) PruneDir(relPath string) bool {
	if c == nil {
		return false
	}
	return !c.ruleIncludes(relPath, true)
}

func (c *Chain) ruleIncludes(relPath string, isDir bool) bool {
	for _, rule := range c.rules {
		if rule.Pattern.match(relPath, isDir) {
			return rule.Include
		}
	}
	return true
}
