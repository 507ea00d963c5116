package workflow

import "fmt"

// Escalation policy constants applied to the best solution score.
const (
	// EscalationThreshold is the score below which a case is escalated.
	EscalationThreshold = 90.0
	// HighPriorityThreshold is the score below which an escalation is high priority.
	HighPriorityThreshold = 70.0
)

// Table is the read-only stage table shared by every request.
type Table struct {
	stages    []Stage
	byName    map[StageName]int
	abilities map[string]Ability
}

// NewTable builds a table and validates it.
func NewTable(stages []Stage) (*Table, error) {
	t := &Table{
		stages:    make([]Stage, 0, len(stages)),
		byName:    make(map[StageName]int, len(stages)),
		abilities: make(map[string]Ability),
	}
	for _, s := range stages {
		if !s.Mode.IsValid() {
			return nil, fmt.Errorf("%w: stage %s has mode %q", ErrUnknownMode, s.Name, s.Mode)
		}
		if _, dup := t.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: stage %s declared twice", ErrConfiguration, s.Name)
		}
		abilities := make([]Ability, len(s.Abilities))
		copy(abilities, s.Abilities)
		for _, a := range abilities {
			if !a.Backend.IsValid() {
				return nil, fmt.Errorf("%w: %s bound to %q", ErrInvalidBackend, a.Name, a.Backend)
			}
			if _, dup := t.abilities[a.Name]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateAbility, a.Name)
			}
			t.abilities[a.Name] = a
		}
		s.Abilities = abilities
		t.byName[s.Name] = len(t.stages)
		t.stages = append(t.stages, s)
	}
	return t, nil
}

// DefaultTable returns the fixed 11-stage support workflow.
func DefaultTable() *Table {
	t, err := NewTable(DefaultStages())
	if err != nil {
		panic(err)
	}
	return t
}

// Stages returns a copy of the stages in order.
func (t *Table) Stages() []Stage {
	out := make([]Stage, len(t.stages))
	copy(out, t.stages)
	return out
}

// Names returns the stage names in order.
func (t *Table) Names() []StageName {
	out := make([]StageName, len(t.stages))
	for i, s := range t.stages {
		out[i] = s.Name
	}
	return out
}

// Stage looks up a stage by name.
func (t *Table) Stage(name StageName) (Stage, error) {
	i, ok := t.byName[name]
	if !ok {
		return Stage{}, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	return t.stages[i], nil
}

// First returns the entry stage.
func (t *Table) First() StageName {
	if len(t.stages) == 0 {
		return ""
	}
	return t.stages[0].Name
}

// Next returns the stage after name, or false when name is the last stage.
func (t *Table) Next(name StageName) (StageName, bool, error) {
	i, ok := t.byName[name]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	if i+1 >= len(t.stages) {
		return "", false, nil
	}
	return t.stages[i+1].Name, true, nil
}

// Ability looks up an ability by its globally unique name.
func (t *Table) Ability(name string) (Ability, error) {
	a, ok := t.abilities[name]
	if !ok {
		return Ability{}, fmt.Errorf("%w: %s", ErrUnknownAbility, name)
	}
	return a, nil
}

// AbilitiesFor returns the abilities bound to backend, in stage order.
func (t *Table) AbilitiesFor(backend Backend) []Ability {
	var out []Ability
	for _, s := range t.stages {
		for _, a := range s.Abilities {
			if a.Backend == backend {
				out = append(out, a)
			}
		}
	}
	return out
}
