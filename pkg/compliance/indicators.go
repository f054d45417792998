package compliance

import "fmt"

// Indicator is a single recorded observation.
type Indicator struct {
	Status  Status
	Message string
}

// Node is a named scope of the indicators tree.
type Node struct {
	Name       string
	Indicators []Indicator
	Children   []*Node

	parent   *Node
	explicit bool
	status   Status
}

// AggregateStatus is NonCompliant iff this scope or any descendant holds a
// NonCompliant indicator.
func (n *Node) AggregateStatus() Status {
	for _, ind := range n.Indicators {
		if ind.Status == NonCompliant {
			return NonCompliant
		}
	}
	for _, child := range n.Children {
		if child.AggregateStatus() == NonCompliant {
			return NonCompliant
		}
	}
	return Compliant
}

// Status returns the verdict recorded with SetStatus, or the aggregate.
func (n *Node) Status() Status {
	if n.explicit {
		return n.status
	}
	return n.AggregateStatus()
}

// Line is one rendered row of the tree.
type Line struct {
	Depth   int
	Message string
	Status  Status
}

// IndicatorsTree records nested observations made while evaluating one
// resource. It is not safe for concurrent use.
type IndicatorsTree struct {
	root    *Node
	current *Node
	depth   int
}

// NewIndicatorsTree creates an empty tree positioned at its unnamed root.
func NewIndicatorsTree() *IndicatorsTree {
	root := &Node{}
	return &IndicatorsTree{root: root, current: root}
}

// Push opens a child scope and makes it current.
func (t *IndicatorsTree) Push(name string) {
	n := &Node{Name: name, parent: t.current}
	t.current.Children = append(t.current.Children, n)
	t.current = n
	t.depth++
}

// Pop closes the current scope. Popping the root is a programming error.
func (t *IndicatorsTree) Pop() {
	if t.current.parent == nil {
		panic("indicators: Pop called without a matching Push")
	}
	t.current = t.current.parent
	t.depth--
}

// Depth is the number of open scopes.
func (t *IndicatorsTree) Depth() int {
	return t.depth
}

// Current returns the open scope.
func (t *IndicatorsTree) Current() *Node {
	return t.current
}

// Root returns the unnamed root scope.
func (t *IndicatorsTree) Root() *Node {
	return t.root
}

// Compliant records a passing observation and returns Compliant.
func (t *IndicatorsTree) Compliant(message string) (Status, error) {
	t.add(Compliant, message)
	return Compliant, nil
}

// NonCompliant records a failing observation and returns NonCompliant.
func (t *IndicatorsTree) NonCompliant(message string) (Status, error) {
	t.add(NonCompliant, message)
	return NonCompliant, nil
}

func (t *IndicatorsTree) Compliantf(format string, args ...interface{}) (Status, error) {
	return t.Compliant(fmt.Sprintf(format, args...))
}

func (t *IndicatorsTree) NonCompliantf(format string, args ...interface{}) (Status, error) {
	return t.NonCompliant(fmt.Sprintf(format, args...))
}

func (t *IndicatorsTree) add(status Status, message string) {
	t.current.Indicators = append(t.current.Indicators, Indicator{Status: status, Message: message})
}

// SetStatus records an explicit verdict on the current scope. It does not
// change the leaf aggregate.
func (t *IndicatorsTree) SetStatus(status Status) {
	t.current.explicit = true
	t.current.status = status
}

// OverallStatus is the leaf aggregate of the whole tree.
func (t *IndicatorsTree) OverallStatus() Status {
	return t.root.AggregateStatus()
}

// LastNonCompliant returns the most recently recorded failing message in
// pre-order.
func (t *IndicatorsTree) LastNonCompliant() (string, bool) {
	var msg string
	found := false
	for _, line := range t.renderLeaves() {
		if line.Status == NonCompliant {
			msg = line.Message
			found = true
		}
	}
	return msg, found
}

func (t *IndicatorsTree) renderLeaves() []Line {
	var out []Line
	var visit func(n *Node)
	visit = func(n *Node) {
		for _, ind := range n.Indicators {
			out = append(out, Line{Message: ind.Message, Status: ind.Status})
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(t.root)
	return out
}

// Render flattens the tree in pre-order: a scope line, then the scope's
// indicators one level deeper, then its child scopes. The root itself is not
// rendered.
func (t *IndicatorsTree) Render() []Line {
	var out []Line
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		for _, ind := range n.Indicators {
			out = append(out, Line{Depth: depth, Message: ind.Message, Status: ind.Status})
		}
		for _, c := range n.Children {
			out = append(out, Line{Depth: depth, Message: c.Name, Status: c.Status()})
			visit(c, depth+1)
		}
	}
	visit(t.root, 0)
	return out
}
