package risk

import (
	"math"
	"sort"

	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

// maxScore caps every category score.
const maxScore = 100

// Scorer applies validated rule tables. It is immutable after NewScorer
// and safe for concurrent use.
type Scorer struct {
	tables   []Table
	weights  map[Category]int
	features []string
}

// NewScorer checks the tables and weights and returns a ConfigInvariant
// error when they must not be served: weights that do not sum to exactly
// one, a weighted category without rules, or a malformed rule.
func NewScorer(tables []Table, weights map[Category]int) (*Scorer, error) {
	byCategory := make(map[Category]Table, len(tables))
	for _, t := range tables {
		if _, dup := byCategory[t.Category]; dup {
			return nil, apperr.ConfigInvariant("category %s has more than one rule table", t.Category)
		}
		if len(t.Rules) == 0 {
			return nil, apperr.ConfigInvariant("rule table for %s is empty", t.Category)
		}
		for _, r := range t.Rules {
			if len(r.Steps) == 0 {
				return nil, apperr.ConfigInvariant("rule %s/%s has no steps", t.Category, r.Name)
			}
			for _, s := range r.Steps {
				if len(s.AnyOf) == 0 || s.Points < 0 {
					return nil, apperr.ConfigInvariant("rule %s/%s has an invalid step", t.Category, r.Name)
				}
				for _, c := range s.AnyOf {
					if err := c.validate(); err != nil {
						return nil, apperr.Wrap(apperr.KindConfigInvariant, "rule "+string(t.Category)+"/"+r.Name, err)
					}
				}
			}
		}
		byCategory[t.Category] = t
	}

	sum := 0
	w := make(map[Category]int, len(weights))
	for cat, bp := range weights {
		if bp < 0 {
			return nil, apperr.ConfigInvariant("weight for %s is negative", cat)
		}
		if _, ok := byCategory[cat]; !ok {
			return nil, apperr.ConfigInvariant("weighted category %s has no rule table", cat)
		}
		sum += bp
		w[cat] = bp
	}
	if sum != weightScale {
		return nil, apperr.ConfigInvariant("category weights sum to %d/%d, want exactly 1", sum, weightScale)
	}
	for cat := range byCategory {
		if _, ok := w[cat]; !ok {
			return nil, apperr.ConfigInvariant("rule table %s has no weight", cat)
		}
	}

	sorted := make([]Table, len(tables))
	copy(sorted, tables)
	sort.SliceStable(sorted, func(i, j int) bool { return categoryOrder[sorted[i].Category] < categoryOrder[sorted[j].Category] })
	return &Scorer{tables: sorted, weights: w, features: referencedFeatures(sorted)}, nil
}

// Score sums the rule points of every category and caps each at 100. A nil
// FeatureSet carries no signal and scores zero everywhere.
func (s *Scorer) Score(fs *FeatureSet) Scores {
	out := make(Scores, len(s.tables))
	for _, t := range s.tables {
		total := 0
		for _, r := range t.Rules {
			total += r.points(fs)
		}
		out[t.Category] = math.Min(float64(total), maxScore)
	}
	return out
}

// Overall is the weighted sum of the category scores. Missing categories
// contribute zero.
func (s *Scorer) Overall(scores Scores) float64 {
	var total float64
	for _, t := range s.tables {
		total += clamp(scores[t.Category]) * float64(s.weights[t.Category])
	}
	return math.Round(total/weightScale*100) / 100
}

// Confidence is the fraction of features the tables read that are present
// in fs.
func (s *Scorer) Confidence(fs *FeatureSet) float64 {
	if len(s.features) == 0 {
		return 0
	}
	present := 0
	for _, f := range s.features {
		if _, ok := fs.Value(f); ok {
			present++
		}
	}
	return math.Round(float64(present)/float64(len(s.features))*1000) / 1000
}

// Categories returns the scored categories in output order.
func (s *Scorer) Categories() []Category {
	out := make([]Category, len(s.tables))
	for i, t := range s.tables {
		out[i] = t.Category
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > maxScore:
		return maxScore
	}
	return v
}
