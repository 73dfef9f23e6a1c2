// Package graph builds and runs state graphs: nodes that read an immutable
// snapshot of shared state and return partial updates, connected by plain,
// join, and conditional edges.
//
// # Building
//
// A Builder collects field policies, nodes, and edges, then Build validates
// the topology and returns an immutable *Graph. Validation reports every
// violation at once (missing entry, dangling edges, unreachable nodes, empty
// label maps, invalid defaults, cycles) as *ValidationError values joined
// with errors.Join.
//
//	b := graph.NewWithObserver(config.DefaultGraphConfig("fanout"), observer)
//	b.Declare("results", state.Append)
//	for _, w := range []string{"a", "b", "c"} {
//	    b.AddNodeFunc(w, worker(w))
//	    b.AddEdge(graph.START, w)
//	}
//	b.AddNodeFunc("aggregate", aggregate)
//	b.AddJoin([]string{"a", "b", "c"}, "aggregate")
//	b.AddEdge("aggregate", graph.END)
//	g, err := b.Build()
//
// # Execution
//
// Run proceeds in steps. Every node whose dependencies are resolved joins
// the step's ready set; the set runs concurrently against one snapshot, and
// the partial updates are merged in declaration order after all of them
// return, so the result never depends on completion order. Replace fields
// keep the last declared writer's value and Append fields concatenate.
//
// A node's dependencies are its incoming edges. A plain edge is satisfied
// when its source completes. A join requires every listed source. A
// conditional edge satisfies only the target its router selects and prunes
// the rest; pruning propagates, so branches that were not selected never
// hold up a downstream node reachable through a selected one.
//
// Nodes that never ran are reported in Result.Unreached with the reason.
//
// # Errors
//
// Any failure during a run (a node error or panic, an undeclared route
// label, a rejected update, cancellation, or exceeding MaxSteps) returns a
// *RunAbortedError and discards the partial state.
package graph
