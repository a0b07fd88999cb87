package workflow

import "sort"

// Workflow is an ordered sequence of stages, each an ordered sequence
// of phases. Construction validates the whole graph up front so that
// an unknown phase or malformed transition surfaces at startup, never
// while serving a request.
type Workflow struct {
	// Name identifies the workflow ("request", "concept_proposal").
	Name string

	// Stages holds the declared stages in order.
	Stages []Stage

	phases  map[string]*Phase
	ordered []string
	stepped map[int][]*Phase
}

// NewWorkflow builds and validates a workflow from its stage
// declarations. It returns a *ConfigError describing the first
// violation found: duplicate or unknown phase names, self-edges,
// transitions declared on terminal phases, non-terminal phases with no
// way out, or guards left nil.
func NewWorkflow(name string, stages []Stage) (*Workflow, error) {
	if name == "" {
		return nil, &ConfigError{Workflow: name, Message: "workflow name is required"}
	}
	if len(stages) == 0 {
		return nil, &ConfigError{Workflow: name, Message: "at least one stage is required"}
	}

	w := &Workflow{
		Name:    name,
		Stages:  stages,
		phases:  make(map[string]*Phase),
		stepped: make(map[int][]*Phase),
	}

	for stageIdx := range stages {
		stage := &stages[stageIdx]
		if len(stage.Phases) == 0 {
			return nil, &ConfigError{Workflow: name, Message: "stage " + stage.Name + " declares no phases"}
		}
		for _, p := range stage.Phases {
			if p.Name == "" {
				return nil, &ConfigError{Workflow: name, Message: "phase with empty name"}
			}
			if _, dup := w.phases[p.Name]; dup {
				return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "duplicate phase name"}
			}
			if !p.Step.IsValid() {
				return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "unknown step type " + string(p.Step)}
			}
			if p.Stage != stageIdx+1 {
				return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "stage index does not match declared position"}
			}
			w.phases[p.Name] = p
			w.ordered = append(w.ordered, p.Name)
			w.stepped[p.StepNum] = append(w.stepped[p.StepNum], p)
		}
	}

	// Edge validation needs the full name table.
	for _, name2 := range w.ordered {
		p := w.phases[name2]
		if p.Step.IsTerminal() && len(p.Transitions) > 0 {
			return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "terminal phase declares outgoing transitions"}
		}
		if !p.Step.IsTerminal() && len(p.Transitions) == 0 {
			return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "non-terminal phase has no outgoing transitions"}
		}
		seen := make(map[string]bool, len(p.Transitions))
		for _, t := range p.Transitions {
			if t.Name == "" {
				return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "transition with empty action name"}
			}
			if seen[t.Name] {
				return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "duplicate action " + t.Name}
			}
			seen[t.Name] = true
			if t.Guard == nil {
				return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "action " + t.Name + " has no guard"}
			}
			if t.Target == p.Name {
				return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "action " + t.Name + " targets its own phase"}
			}
			if _, ok := w.phases[t.Target]; !ok {
				return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "action " + t.Name + " targets unknown phase " + t.Target}
			}
		}
		if p.AllAssignedAction != "" {
			if _, ok := p.Transition(p.AllAssignedAction); !ok {
				return nil, &ConfigError{Workflow: name, Phase: p.Name, Message: "all-assigned action " + p.AllAssignedAction + " is not a declared transition"}
			}
		}
	}

	return w, nil
}

// MustWorkflow builds a workflow and panics on a configuration error.
// Intended for the built-in definitions constructed at process start.
func MustWorkflow(name string, stages []Stage) *Workflow {
	w, err := NewWorkflow(name, stages)
	if err != nil {
		panic(err)
	}
	return w
}

// Phase returns the phase with the given name. An unknown name is a
// configuration (or status-migration) fault, reported as *ConfigError.
func (w *Workflow) Phase(name string) (*Phase, error) {
	p, ok := w.phases[name]
	if !ok {
		return nil, &ConfigError{Workflow: w.Name, Phase: name, Message: "unknown phase"}
	}
	return p, nil
}

// InitialPhase returns the single entry point: the first phase of the
// first stage.
func (w *Workflow) InitialPhase() *Phase {
	return w.Stages[0].Phases[0]
}

// StageOf returns the stage the given phase belongs to.
func (w *Workflow) StageOf(p *Phase) *Stage {
	return &w.Stages[p.Stage-1]
}

// OrderedPhaseNames returns every phase name in declaration order.
// This ordering defines transition direction: moving to a phase with a
// strictly greater index is forward, a lower index is backward.
func (w *Workflow) OrderedPhaseNames() []string {
	out := make([]string, len(w.ordered))
	copy(out, w.ordered)
	return out
}

// PhaseIndex returns the declaration-order index of a phase name.
func (w *Workflow) PhaseIndex(name string) (int, bool) {
	for i, n := range w.ordered {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// SteppedPhases groups phases by step number across all stages,
// returned in ascending step order.
func (w *Workflow) SteppedPhases() [][]*Phase {
	steps := make([]int, 0, len(w.stepped))
	for step := range w.stepped {
		steps = append(steps, step)
	}
	sort.Ints(steps)

	out := make([][]*Phase, 0, len(steps))
	for _, step := range steps {
		out = append(out, w.stepped[step])
	}
	return out
}

// Phases returns every phase in declaration order.
func (w *Workflow) Phases() []*Phase {
	out := make([]*Phase, 0, len(w.ordered))
	for _, name := range w.ordered {
		out = append(out, w.phases[name])
	}
	return out
}
