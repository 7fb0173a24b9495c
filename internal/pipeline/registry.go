package pipeline

import (
	"errors"
	"fmt"

	"github.com/roach88/actfuse/internal/ir"
	"github.com/roach88/actfuse/internal/passes"
)

// Constraint orders a pass relative to other registered passes.
type Constraint func(*registration)

// After requires the pass to run after each named pass.
func After(names ...string) Constraint {
	return func(r *registration) {
		r.after = append(r.after, names...)
	}
}

// Before requires the pass to run before each named pass.
func Before(names ...string) Constraint {
	return func(r *registration) {
		r.before = append(r.before, names...)
	}
}

type registration struct {
	pass   passes.Pass
	index  int
	after  []string
	before []string
}

// Registry holds passes by unique name.
//
// Registration order is significant: it breaks ties between passes that are
// not ordered by any constraint, so Order is deterministic.
type Registry struct {
	regs   []*registration
	byName map[string]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*registration)}
}

// NewDefaultRegistry returns the standard pipeline: quantize (only when a
// default precision is given) followed by fuse_activation.
func NewDefaultRegistry(defaultPrecision *ir.Precision) *Registry {
	r := NewRegistry()
	if defaultPrecision != nil {
		r.mustRegister(passes.Quantize{Default: *defaultPrecision})
	}
	r.mustRegister(passes.FuseActivation{}, After(passes.NameQuantize))
	return r
}

// Register adds a pass. Constraints may name passes that are registered
// later, or never; constraints on unknown names are ignored by Order.
func (r *Registry) Register(p passes.Pass, constraints ...Constraint) error {
	if p == nil {
		return errors.New("register: nil pass")
	}
	name := p.Name()
	if name == "" {
		return errors.New("register: pass name is required")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("register: pass %q already registered", name)
	}

	reg := &registration{pass: p, index: len(r.regs)}
	for _, c := range constraints {
		c(reg)
	}
	r.regs = append(r.regs, reg)
	r.byName[name] = reg
	return nil
}

func (r *Registry) mustRegister(p passes.Pass, constraints ...Constraint) {
	if err := r.Register(p, constraints...); err != nil {
		panic(err)
	}
}

// Lookup returns the pass registered under name.
func (r *Registry) Lookup(name string) (passes.Pass, bool) {
	reg, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return reg.pass, true
}

// Names returns pass names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.regs))
	for i, reg := range r.regs {
		names[i] = reg.pass.Name()
	}
	return names
}

// Len returns the number of registered passes.
func (r *Registry) Len() int {
	return len(r.regs)
}

// Order resolves the ordering constraints into an execution order.
//
// Among passes whose predecessors have all been placed, the one registered
// first goes next. Returns *OrderError naming a cycle if the constraints
// cannot be satisfied.
func (r *Registry) Order() ([]passes.Pass, error) {
	n := len(r.regs)
	succ := make([][]int, n)
	pred := make([][]int, n)
	indegree := make([]int, n)

	edge := func(from, to int) {
		succ[from] = append(succ[from], to)
		pred[to] = append(pred[to], from)
		indegree[to]++
	}
	for _, reg := range r.regs {
		for _, name := range reg.after {
			if other, ok := r.byName[name]; ok {
				edge(other.index, reg.index)
			}
		}
		for _, name := range reg.before {
			if other, ok := r.byName[name]; ok {
				edge(reg.index, other.index)
			}
		}
	}

	placed := make([]bool, n)
	order := make([]passes.Pass, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !placed[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, &OrderError{Cycle: r.findCycle(placed, pred)}
		}
		placed[next] = true
		order = append(order, r.regs[next].pass)
		for _, s := range succ[next] {
			indegree[s]--
		}
	}
	return order, nil
}

// findCycle walks predecessor links among the unplaced passes, which all
// have at least one unplaced predecessor, until a pass repeats.
func (r *Registry) findCycle(placed []bool, pred [][]int) []string {
	start := -1
	for i := range placed {
		if !placed[i] {
			start = i
			break
		}
	}

	seen := make(map[int]int)
	var walk []int
	cur := start
	for {
		if pos, ok := seen[cur]; ok {
			walk = walk[pos:]
			break
		}
		seen[cur] = len(walk)
		walk = append(walk, cur)

		next := -1
		for _, p := range pred[cur] {
			if !placed[p] && (next < 0 || p < next) {
				next = p
			}
		}
		cur = next
	}

	// The walk follows edges backwards; reverse it to read in run order and
	// start from the earliest registered pass.
	for i, j := 0, len(walk)-1; i < j; i, j = i+1, j-1 {
		walk[i], walk[j] = walk[j], walk[i]
	}
	first := 0
	for i, idx := range walk {
		if idx < walk[first] {
			first = i
		}
	}

	cycle := make([]string, 0, len(walk)+1)
	for i := range walk {
		cycle = append(cycle, r.regs[walk[(first+i)%len(walk)]].pass.Name())
	}
	return append(cycle, cycle[0])
}
