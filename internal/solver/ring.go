package solver

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"placefix/internal/model"
)

// RingEngine detects require-cycles: directed cycles of length two or more
// in the graph whose nodes are entity names and whose edges are induced by
// require rules. Self-loops are satisfiable by construction and left to the
// sat engine.
type RingEngine struct{}

// NewRingEngine returns a ring engine.
func NewRingEngine() *RingEngine { return &RingEngine{} }

// Name implements Engine.
func (*RingEngine) Name() string { return "ring" }

type requireGraph struct {
	g     *simple.DirectedGraph
	ids   map[string]int64
	names map[int64]string
	// rules holds, per directed edge, every require rule that induced it.
	rules map[[2]int64][]model.Rule
}

func buildRequireGraph(m *EntityMap) *requireGraph {
	rg := &requireGraph{
		g:     simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		names: make(map[int64]string),
		rules: make(map[[2]int64][]model.Rule),
	}
	for i := range m.Entities {
		e := &m.Entities[i]
		from := rg.node(e.Name)
		for _, r := range e.Requires {
			for _, target := range r.Targets() {
				to := rg.node(target)
				if to == from {
					// Self-loop; not a ring.
					continue
				}
				rg.g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
				key := [2]int64{from, to}
				rg.rules[key] = append(rg.rules[key], r)
			}
		}
	}
	return rg
}

func (rg *requireGraph) node(name string) int64 {
	if id, ok := rg.ids[name]; ok {
		return id
	}
	id := int64(len(rg.ids))
	rg.ids[name] = id
	rg.names[id] = name
	rg.g.AddNode(simple.Node(id))
	return id
}

type cycleHit struct {
	target string
	rule   model.Rule
}

// Solve implements Engine.
func (e *RingEngine) Solve(m *EntityMap) Verdict {
	rg := buildRequireGraph(m)

	cycles := topo.DirectedCyclesIn(rg.g)
	if len(cycles) == 0 {
		return Ok()
	}

	hits := make(map[string][]cycleHit)
	// For a Multi require the disjunction survives as long as one branch
	// stays unblocked, so track which of its branches appear inside cycles
	// and convict the rule only once all of them do.
	ruleWays := make(map[string]map[string]struct{})

	for _, cycle := range cycles {
		members := make(map[int64]struct{}, len(cycle))
		for _, n := range cycle {
			members[n.ID()] = struct{}{}
		}
		if len(members) < 2 {
			continue
		}

		for id := range members {
			srcName := rg.names[id]
			out := rg.g.From(id)
			for out.Next() {
				to := out.Node().ID()
				if to == id {
					continue
				}
				if _, in := members[to]; !in {
					continue
				}
				tgtName := rg.names[to]
				for _, rule := range rg.rules[[2]int64{id, to}] {
					if rule.Source() != srcName || !rule.HasTarget(tgtName) {
						continue
					}
					if len(rule.Targets()) > 1 {
						ways, ok := ruleWays[rule.Key()]
						if !ok {
							ways = make(map[string]struct{})
							ruleWays[rule.Key()] = ways
						}
						ways[tgtName] = struct{}{}
						if len(ways) >= len(rule.Targets()) {
							hits[srcName] = append(hits[srcName], cycleHit{target: tgtName, rule: rule})
						}
					} else {
						hits[srcName] = append(hits[srcName], cycleHit{target: tgtName, rule: rule})
					}
				}
			}
		}
	}

	// Prune dead ends: keep a hit only when its target is itself the source
	// of further hits, so reports stay on the nodes that actually feed the
	// unsatisfiability.
	conflicts := make(map[string][]model.Rule)
	for name, list := range hits {
		var rules []model.Rule
		for _, h := range list {
			if _, ok := hits[h.target]; ok {
				rules = append(rules, h.rule)
			}
		}
		if len(rules) > 0 {
			conflicts[name] = rules
		}
	}

	return NewConflict(conflicts)
}
