package classifier

// ThreatPolicy maps event labels to the threat flag. The policy is a set
// membership check over configurable label data, so the actionable subset
// can change without touching the pipeline.
type ThreatPolicy struct {
	threatLabels map[string]struct{}
}

// defaultThreatLabels is the actionable subset of the label set.
var defaultThreatLabels = []string{
	LabelVessel,
	LabelBlastFishing,
	LabelSeismic,
}

// NewThreatPolicy creates a policy treating the given labels as threats.
func NewThreatPolicy(threatLabels []string) *ThreatPolicy {
	set := make(map[string]struct{}, len(threatLabels))
	for _, label := range threatLabels {
		set[label] = struct{}{}
	}
	return &ThreatPolicy{threatLabels: set}
}

// DefaultThreatPolicy creates the policy with the standard threat subset:
// vessel, blast_fishing and seismic.
func DefaultThreatPolicy() *ThreatPolicy {
	return NewThreatPolicy(defaultThreatLabels)
}

// IsThreat reports whether the label is in the actionable subset. The
// decision is total over any string and never depends on confidence.
func (p *ThreatPolicy) IsThreat(label string) bool {
	_, ok := p.threatLabels[label]
	return ok
}
