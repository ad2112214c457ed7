// Package classifier scores feature vectors against the fixed acoustic
// event label set and resolves the threat flag for a classification.
package classifier

// Acoustic event labels. The slice order is the canonical label ordering:
// probability vectors are indexed by it and ties in Predict are broken in
// favor of the lowest index.
const (
	LabelMarineLife   = "marine_life"
	LabelVessel       = "vessel"
	LabelBlastFishing = "blast_fishing"
	LabelSeismic      = "seismic"
	LabelAmbient      = "ambient"
)

var labels = []string{
	LabelMarineLife,
	LabelVessel,
	LabelBlastFishing,
	LabelSeismic,
	LabelAmbient,
}

// Labels returns the fixed label set in canonical order.
func Labels() []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// NumLabels is the size of the label set.
func NumLabels() int { return len(labels) }
