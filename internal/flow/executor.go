package flow

import (
	"context"

	"nodectl/internal/config"
	"nodectl/internal/service"
	"nodectl/pkg/logging"
)

// Dispatcher executes a single step. The concrete implementation is
// Steps; tests substitute their own.
type Dispatcher interface {
	Dispatch(ctx context.Context, step StepKind, sc StepContext) error
}

// Fleet lists the installed instances. The executor snapshots it once
// per run so every step works from the same view.
type Fleet interface {
	List() ([]*service.Instance, error)
}

// Options carries per-invocation inputs that are not part of the
// instance configuration.
type Options struct {
	// PluginCompose is the compose file a plugin install adopts. Empty
	// for every other kind and action.
	PluginCompose string
}

// StepContext is handed to every step of one flow run. Fleet and
// Resources are computed before the first step dispatches and stay
// fixed for the whole run.
type StepContext struct {
	Instance  *service.Instance
	Action    Action
	Def       FlowDefinition
	Fleet     []*service.Instance
	Resources ResourceSet
	Options   Options
}

// Result summarizes one flow run. A run with only non-critical
// failures still counts as successful; the failures are reported so
// the caller can surface them.
type Result struct {
	Instance string
	Action   Action
	StepsRun []StepKind
	Failures []StepFailure
	Aborted  bool
	Err      error
}

// Success reports whether the flow ran to the end of its step list.
func (r *Result) Success() bool {
	return r.Err == nil && !r.Aborted
}

// Executor runs the step list an action maps to, in order, stopping at
// the first critical failure.
type Executor struct {
	registry *Registry
	steps    Dispatcher
	fleet    Fleet
	names    config.NetworkNames
}

func NewExecutor(registry *Registry, steps Dispatcher, fleet Fleet, names config.NetworkNames) *Executor {
	return &Executor{registry: registry, steps: steps, fleet: fleet, names: names}
}

// Execute runs one action against one instance. The returned result is
// always populated; Err is set when the run aborted or could not start.
func (e *Executor) Execute(ctx context.Context, inst *service.Instance, action Action, opts Options) *Result {
	result := &Result{Instance: inst.Name, Action: action}

	def, err := e.registry.Definition(inst.Kind)
	if err != nil {
		result.Err = err
		return result
	}
	steps, ok := def.Steps[action]
	if !ok {
		result.Err = service.NewConfigurationError("action %q is not defined for kind %s", action, inst.Kind)
		return result
	}
	fleet, err := e.fleet.List()
	if err != nil {
		result.Err = err
		return result
	}

	sc := StepContext{
		Instance:  inst,
		Action:    action,
		Def:       def,
		Fleet:     fleet,
		Resources: def.Resources(inst, fleet, e.names),
		Options:   opts,
	}
	logging.Debug("Flow", "Running %s flow for %s (%d steps)", action, inst.Name, len(steps))

	for _, step := range steps {
		logging.Debug("Flow", "Step %s for %s", step, inst.Name)
		if err := e.steps.Dispatch(ctx, step, sc); err != nil {
			result.Failures = append(result.Failures, StepFailure{Step: step, Err: err})
			if step.Critical() {
				logging.Error("Flow", err, "Critical step %s failed for %s, aborting", step, inst.Name)
				result.Aborted = true
				result.Err = &CriticalStepError{Step: step, Err: err}
				return result
			}
			logging.Warn("Flow", "Step %s failed for %s (continuing): %v", step, inst.Name, err)
			continue
		}
		result.StepsRun = append(result.StepsRun, step)
	}
	return result
}
