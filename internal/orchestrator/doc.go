// Package orchestrator composes readiness, slot selection, assignment and
// agent launch into a single delegation step.
//
// Delegation is not atomic: the task is assigned to its slot
// first and the agent launched second. If the launch fails the slot stays
// occupied and the task keeps pointing at it, so a retry of Delegate (or a
// manual release) resolves the state.
//
// Example usage:
//
//	o := orchestrator.New(db, pool, agents)
//	run, err := o.Delegate(ctx, "fix-login", "Add tests first", orchestrator.DelegateOptions{})
package orchestrator
