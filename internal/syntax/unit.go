package syntax

import (
	"errors"
	"fmt"
)

// ErrCorruptTree reports a node graph that is not a tree: a cycle, or a node
// reachable through two parents. It is a precondition violation and aborts
// the whole run.
var ErrCorruptTree = errors.New("corrupt syntax tree")

// SourceUnit is one parsed source file. It is immutable once created.
type SourceUnit struct {
	path  string
	root  *Node
	count int
}

// NewSourceUnit validates root and wraps it in a SourceUnit.
func NewSourceUnit(path string, root *Node) (*SourceUnit, error) {
	if root == nil {
		return nil, fmt.Errorf("%s: %w: nil root", path, ErrCorruptTree)
	}
	count, err := validate(root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &SourceUnit{path: path, root: root, count: count}, nil
}

// Path returns the file path the unit was parsed from.
func (u *SourceUnit) Path() string { return u.path }

// Root returns the root node.
func (u *SourceUnit) Root() *Node { return u.root }

// NodeCount returns the number of nodes in the tree, root included.
func (u *SourceUnit) NodeCount() int { return u.count }

// validate walks the graph iteratively and fails on the first node seen
// twice. A revisit through the current path is a cycle; any other revisit is
// a shared child.
func validate(root *Node) (int, error) {
	type frame struct {
		node *Node
		next int
	}
	seen := map[*Node]bool{root: true}
	onPath := map[*Node]bool{root: true}
	stack := []frame{{node: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.node.Children) {
			delete(onPath, top.node)
			stack = stack[:len(stack)-1]
			continue
		}
		child := top.node.Children[top.next]
		top.next++
		if child == nil {
			continue
		}
		if onPath[child] {
			return 0, fmt.Errorf("%w: cycle at %s", ErrCorruptTree, child)
		}
		if seen[child] {
			return 0, fmt.Errorf("%w: %s has more than one parent", ErrCorruptTree, child)
		}
		seen[child] = true
		onPath[child] = true
		stack = append(stack, frame{node: child})
	}
	return len(seen), nil
}
