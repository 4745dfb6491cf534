// Package graph defines the Step Graph: the compiled, directed representation
// of a handler routine, and the loop that traverses it.
//
// # Steps
//
// A graph is made of five step kinds, all implementing Step:
//
//	ActionStep     runs one fragment.Instr, one successor (Next)
//	ConditionStep  evaluates a fragment.Test, two successors (True, False)
//	JumpStep       break/continue, one fixed successor (Target)
//	ReturnStep     writes the return slot, terminal
//	YieldStep      appends to the output sequence, one successor (Next)
//
// Every step gets a process-wide unique, monotonically increasing ID when it
// is constructed. IDs are used for rendering and for cycle-safe walks; loop
// bodies link back to their header, so graphs are generally cyclic.
//
// # Lifecycle
//
//  1. **Build:** builder.Build creates and links steps. This is the only time
//     steps are mutated.
//  2. **Optimize:** optimizer.Optimize may return a new Graph value with a
//     different Entry. Consumed steps are left as they were.
//  3. **Execute:** any number of executions call Traverse on the shared graph,
//     each with its own *fragment.Env.
//
// # Rendering
//
// String prints one line per reachable step:
//
//	Graph:
//	  ActionStep<1>(x = 1) --next--> ActionStep<2>
//	  ActionStep<2>(y = 2) --next--> ReturnStep<3>
//	  ReturnStep<3> (returns: x + y)
//
// A missing successor prints as <exit>; an empty graph as Graph(<empty>).
//
// # Guarded blocks
//
// try/except/finally is not a first-class control-flow primitive. The builder
// compiles each clause into its own sub-graph and wraps them in a Guarded
// instruction, which runs inside a single ActionStep. Jumps and returns cannot
// cross that boundary.
package graph
