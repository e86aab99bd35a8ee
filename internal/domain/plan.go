package domain

// ExecutionPlan is the layered execution order computed fresh for every run.
// Layers execute strictly in index order; nodes within a layer have no
// ordering dependency among themselves.
type ExecutionPlan struct {
	Layers       [][]string          `json:"layers"`
	Dependencies map[string][]string `json:"dependencies"`
	Dependents   map[string][]string `json:"dependents"`
}

func (p *ExecutionPlan) NodeCount() int {
	count := 0
	for _, layer := range p.Layers {
		count += len(layer)
	}
	return count
}

func (p *ExecutionPlan) LayerCount() int {
	return len(p.Layers)
}
