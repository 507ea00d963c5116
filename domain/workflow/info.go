package workflow

// Agent identity reported by Info.
const (
	AgentName    = "Langie"
	AgentVersion = "1.0.0"
)

// Info describes the workflow an engine runs.
type Info struct {
	Name      string               `json:"name"`
	Version   string               `json:"version"`
	Stages    []Stage              `json:"stages"`
	Abilities map[Backend][]string `json:"abilities"`
}

// Describe builds an Info for the table.
func (t *Table) Describe(name, version string) Info {
	info := Info{
		Name:      name,
		Version:   version,
		Stages:    t.Stages(),
		Abilities: make(map[Backend][]string, 2),
	}
	for _, b := range Backends() {
		for _, a := range t.AbilitiesFor(b) {
			info.Abilities[b] = append(info.Abilities[b], a.Name)
		}
	}
	return info
}
