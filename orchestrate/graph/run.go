package graph

import "slices"

type recordStatus uint8

const (
	recordPending recordStatus = iota
	recordTaken
	recordPruned
)

type nodeStatus uint8

const (
	nodePending nodeStatus = iota
	nodeReady
	nodeCompleted
	nodePruned
	nodeBlocked
)

// UnreachedReason explains why a node did not run.
type UnreachedReason string

const (
	// ReasonNotSelected: every path into the node was pruned by routing.
	ReasonNotSelected UnreachedReason = "not_selected"
	// ReasonUnmetJoin: a join required a source that never completed.
	ReasonUnmetJoin UnreachedReason = "unmet_join"
)

// Unreached is a node that did not execute in a run.
type Unreached struct {
	Node   string          `json:"node"`
	Reason UnreachedReason `json:"reason"`
}

// tracker is the per-run resolution of a graph's dependency records. A
// record becomes taken when its source completes along it and pruned when
// its source can no longer send along it. A node is decided once all of its
// records are resolved: it is ready if any plain record was taken or all of
// its join records were; blocked if a join record was pruned; pruned
// otherwise. Blocked and pruned nodes prune their own outgoing records.
type tracker struct {
	g       *Graph
	records []recordStatus
	status  map[string]nodeStatus
	ready   []string
}

func newTracker(g *Graph) *tracker {
	return &tracker{
		g:       g,
		records: make([]recordStatus, len(g.records)),
		status:  make(map[string]nodeStatus, len(g.order)),
	}
}

// complete marks source as finished. When source has a conditional edge,
// target is the routed destination; END or "" prunes every branch.
func (t *tracker) complete(source, target string) {
	if source != START {
		t.status[source] = nodeCompleted
	}

	out, ok := t.g.outgoing[source]
	if !ok {
		return
	}
	for _, id := range out.records {
		t.resolve(id, recordTaken)
	}
	for _, branch := range out.branchOrder {
		if branch == target {
			t.resolve(out.branches[branch], recordTaken)
		} else {
			t.resolve(out.branches[branch], recordPruned)
		}
	}
}

func (t *tracker) prune(source string) {
	out, ok := t.g.outgoing[source]
	if !ok {
		return
	}
	for _, id := range out.records {
		t.resolve(id, recordPruned)
	}
	for _, branch := range out.branchOrder {
		t.resolve(out.branches[branch], recordPruned)
	}
}

func (t *tracker) resolve(id int, status recordStatus) {
	if t.records[id] != recordPending {
		return
	}
	t.records[id] = status
	t.decide(t.g.records[id].target)
}

func (t *tracker) decide(node string) {
	if t.status[node] != nodePending {
		return
	}

	var plainTaken, strict, strictPruned bool
	for _, id := range t.g.incoming[node] {
		status := t.records[id]
		if status == recordPending {
			return
		}
		rec := t.g.records[id]
		switch {
		case rec.strict:
			strict = true
			if status == recordPruned {
				strictPruned = true
			}
		case status == recordTaken:
			plainTaken = true
		}
	}

	switch {
	case plainTaken || (strict && !strictPruned):
		t.status[node] = nodeReady
		t.ready = append(t.ready, node)
	case strictPruned:
		t.status[node] = nodeBlocked
		t.prune(node)
	default:
		t.status[node] = nodePruned
		t.prune(node)
	}
}

// next drains the nodes that became ready, in declaration order.
func (t *tracker) next() []string {
	ready := t.ready
	t.ready = nil
	slices.SortFunc(ready, func(a, b string) int {
		return t.g.index[a] - t.g.index[b]
	})
	return ready
}

func (t *tracker) unreached() []Unreached {
	var out []Unreached
	for _, id := range t.g.order {
		switch t.status[id] {
		case nodePruned, nodePending:
			out = append(out, Unreached{Node: id, Reason: ReasonNotSelected})
		case nodeBlocked:
			out = append(out, Unreached{Node: id, Reason: ReasonUnmetJoin})
		}
	}
	return out
}
