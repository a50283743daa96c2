package model

// Document-level complexity thresholds. A document falls into the first
// tier whose feature count and estimated node count both fit.
const (
	simpleMaxFeatures  = 3
	simpleMaxNodes     = 10
	mediumMaxFeatures  = 10
	mediumMaxNodes     = 50
	complexMaxFeatures = 20
	complexMaxNodes    = 100
)

// EstimatedNodeCount estimates the size of the generated graph: a start
// and an end node, plus roughly two nodes per flow step (the node itself
// and branch/terminal overhead). Features without steps still cost one.
func (d *Document) EstimatedNodeCount() int {
	n := 2
	for i := range d.Features {
		steps := len(d.Features[i].Steps) * 2
		if steps < 1 {
			steps = 1
		}
		n += steps
	}
	return n
}

// ComplexityTier classifies the document for strategy selection.
// The classification is a pure function of the document.
func (d *Document) ComplexityTier() Complexity {
	features := len(d.Features)
	nodes := d.EstimatedNodeCount()

	switch {
	case features <= simpleMaxFeatures && nodes <= simpleMaxNodes:
		return Simple
	case features <= mediumMaxFeatures && nodes <= mediumMaxNodes:
		return Medium
	case features <= complexMaxFeatures && nodes <= complexMaxNodes:
		return Complex
	default:
		return Enterprise
	}
}

// FeatureScore computes the per-feature complexity score used by the
// hybrid strategy to decide which features are routed as standalone
// chunks.
func FeatureScore(f *Feature) int {
	score := 0

	switch steps := len(f.Steps); {
	case steps > 10:
		score += 3
	case steps > 5:
		score += 2
	case steps > 0:
		score++
	}

	switch vars := len(f.VariablesUsed); {
	case vars > 5:
		score += 2
	case vars > 2:
		score++
	}

	switch apis := len(f.APIsUsed); {
	case apis > 3:
		score += 2
	case apis > 0:
		score++
	}

	if len(f.Dependencies) > 0 {
		score++
	}
	if len(f.UserStories) > 3 {
		score++
	}

	return score
}

// FeatureTier maps a per-feature score to a complexity tier.
func FeatureTier(score int) Complexity {
	switch {
	case score <= 2:
		return Simple
	case score <= 5:
		return Medium
	case score <= 8:
		return Complex
	default:
		return Enterprise
	}
}
