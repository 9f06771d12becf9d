// Package flow defines and executes per-kind lifecycle flows.
//
// A FlowDefinition describes, for one service kind, how its instances
// live and die: the ordered step lists for each action, the resource
// patterns the instance owns, its port requirements, and the kinds it
// depends on or must notify. The Registry holds one definition per
// kind; it is built once at startup and never changes afterwards.
//
// # Execution
//
// The Executor resolves the definition for an instance's kind, snapshots
// the installed fleet, computes the instance's concrete ResourceSet and
// then dispatches the action's steps strictly in order. Each StepKind
// carries a fixed criticality:
//
//   - Critical steps create or destroy resources the instance itself
//     owns. Their failure aborts the remaining steps; the returned
//     CriticalStepError names the step. There is no rollback: every
//     step is idempotent, so re-invoking the action resumes cleanly.
//   - NonCritical steps touch dependents and cross-service
//     integrations. Their failure is logged, recorded in the Result
//     and the flow continues.
//
// # Steps
//
// Steps is the production dispatcher. It routes each StepKind to a
// handler acting through the container runtime, the instance store,
// the network reconciler and the dashboard renderer. The dispatch
// switch is exhaustive; an unhandled kind is a configuration error.
package flow
