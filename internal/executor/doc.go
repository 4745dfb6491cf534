// Package executor runs a compiled Step Graph against inputs.
//
// An Executor is built once per handler from its graph (optimized at
// construction) and an optional handler instance. Each input gets a fresh
// binding environment seeded from shared, read-only bindings, so failures and
// mutations never leak between inputs. Inputs are processed sequentially;
// concurrency across requests belongs to the scheduler.
//
// Steps run one after another as context-aware blocking operations. An awaited
// call submits its work to the task executor and blocks the traversal until the
// future resolves, so a step is always complete before the next one starts.
package executor
