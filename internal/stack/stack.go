// Package stack models a linear sequence of branches built on a base branch
// and detects stacks from live Git ancestry.
package stack

// Branch is one entry in a stack: a named ref plus its current tip commit.
// Branches are reconstructed from Git on every invocation and never persisted.
type Branch struct {
	Name     string
	Commit   string
	Upstream string // remote tracking ref SHA, empty if never pushed
}

// Stack is an ordered sequence of branches, root-to-tip, built on Base.
// Each branch's ancestor-of-record is the previous branch in the sequence,
// or Base for the first element.
type Stack struct {
	Base     string
	Branches []Branch
}

// Names returns the branch names root-to-tip
func (s *Stack) Names() []string {
	names := make([]string, len(s.Branches))
	for i, b := range s.Branches {
		names[i] = b.Name
	}
	return names
}

// ParentOf returns the name of the branch's parent in the stack:
// the previous branch, or the base branch for the first element.
func (s *Stack) ParentOf(i int) string {
	if i == 0 {
		return s.Base
	}
	return s.Branches[i-1].Name
}

// Tip returns the topmost branch of the stack
func (s *Stack) Tip() Branch {
	return s.Branches[len(s.Branches)-1]
}

// Contains reports whether a branch name is part of the stack
func (s *Stack) Contains(name string) bool {
	for _, b := range s.Branches {
		if b.Name == name {
			return true
		}
	}
	return false
}
