/*
Package vm implements a deterministic, resource-bounded stack machine
for smart-contract scripts.

An ExecutionEngine owns a stack of ExecutionContexts, one per active
call. Each step decodes the instruction at the current context's
instruction pointer (see ParseOp) and dispatches it through the ops
table to a handler in one of the following files:
  - pushdata
  - control (jumps, calls, returns, syscalls)
  - exception (try, catch, finally, throw)
  - stack
  - splice
  - bitwise
  - numeric
  - crypto
  - container
  - slot
  - types

Values on the stacks are StackItems. The compound kinds (Array,
Struct, Map and Buffer) have identity, may form cycles, and are
tracked by the engine's ReferenceCounter. Every push, pop, slot
store and container mutation is mirrored into the counter, and after
each instruction the engine checks the live reference count against
Limits.MaxStackSize, reclaiming unreachable cycles first.

Two counters satisfy the same contract: one finds dead cycles with
Tarjan's strongly connected components restricted to the candidates
that lost a reference, the other marks from every stack root and
sweeps. They always agree on Count.

Faults never escape as Go errors or panics. A failing step leaves
the engine in FAULT with FaultErr reporting the cause, and the
invocation stack as it was for inspection. An unhandled THROW also
records the thrown item, see UncaughtException.
*/
package vm
