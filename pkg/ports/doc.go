// Package ports defines the boundary interfaces of the engine: the
// capability contracts (reasoning, structured output, workers) and the
// driven-side contracts (run persistence, distributed locking). Adapters
// implement them; the core depends only on these interfaces.
package ports
