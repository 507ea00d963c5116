// Package workflow defines the static stage and ability tables of the support workflow.
package workflow

// StageName identifies one of the fixed workflow stages.
type StageName string

// The fixed stages, in execution order.
const (
	StageIntake     StageName = "INTAKE"
	StageUnderstand StageName = "UNDERSTAND"
	StagePrepare    StageName = "PREPARE"
	StageAsk        StageName = "ASK"
	StageWait       StageName = "WAIT"
	StageRetrieve   StageName = "RETRIEVE"
	StageDecide     StageName = "DECIDE"
	StageUpdate     StageName = "UPDATE"
	StageCreate     StageName = "CREATE"
	StageDo         StageName = "DO"
	StageComplete   StageName = "COMPLETE"
)

// String returns the stage name.
func (s StageName) String() string {
	return string(s)
}

// StageOrder returns the fixed total order of stages.
func StageOrder() []StageName {
	return []StageName{
		StageIntake,
		StageUnderstand,
		StagePrepare,
		StageAsk,
		StageWait,
		StageRetrieve,
		StageDecide,
		StageUpdate,
		StageCreate,
		StageDo,
		StageComplete,
	}
}

// Mode selects how a stage dispatches its abilities.
type Mode string

// Stage execution modes.
const (
	ModePayloadOnly      Mode = "payload_only"
	ModeDeterministic    Mode = "deterministic"
	ModeNonDeterministic Mode = "non_deterministic"
	ModeHuman            Mode = "human"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModePayloadOnly, ModeDeterministic, ModeNonDeterministic, ModeHuman:
		return true
	default:
		return false
	}
}

// Backend is the service group an ability is statically bound to.
type Backend string

// Backend groups.
const (
	// BackendCommon hosts general-purpose abilities.
	BackendCommon Backend = "common"
	// BackendAtlas hosts abilities that reach external systems.
	BackendAtlas Backend = "atlas"
)

// IsValid reports whether b is a known backend group.
func (b Backend) IsValid() bool {
	return b == BackendCommon || b == BackendAtlas
}

// Backends returns every backend group.
func Backends() []Backend {
	return []Backend{BackendCommon, BackendAtlas}
}

// Ability is a single unit of work bound to one backend group.
type Ability struct {
	Name        string  `json:"name" yaml:"name"`
	Backend     Backend `json:"backend" yaml:"backend"`
	Description string  `json:"description" yaml:"description"`
}

// Stage is one step of the workflow with its mode and ordered abilities.
type Stage struct {
	Name        StageName `json:"name" yaml:"name"`
	Mode        Mode      `json:"mode" yaml:"mode"`
	Abilities   []Ability `json:"abilities" yaml:"abilities"`
	Description string    `json:"description" yaml:"description"`
}

// HasAbility reports whether the stage declares the named ability.
func (s Stage) HasAbility(name string) bool {
	_, ok := s.Ability(name)
	return ok
}

// Ability returns the declared ability with the given name.
func (s Stage) Ability(name string) (Ability, bool) {
	for _, a := range s.Abilities {
		if a.Name == name {
			return a, true
		}
	}
	return Ability{}, false
}
