package risk

import (
	"fmt"
	"sort"
)

// Op compares a feature value with a threshold.
type Op string

const (
	OpGTE Op = ">="
	OpGT  Op = ">"
	OpLTE Op = "<="
	OpLT  Op = "<"
)

func (o Op) apply(v, threshold float64) bool {
	switch o {
	case OpGTE:
		return v >= threshold
	case OpGT:
		return v > threshold
	case OpLTE:
		return v <= threshold
	case OpLT:
		return v < threshold
	}
	return false
}

// Condition is either a numeric comparison on Feature or, when Symptom is
// set, the presence of that symptom tag. An absent feature never matches.
type Condition struct {
	Feature   string  `json:"feature,omitempty"`
	Op        Op      `json:"op,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Symptom   string  `json:"symptom,omitempty"`
}

func (c Condition) holds(fs *FeatureSet) bool {
	if c.Symptom != "" {
		return fs.HasSymptom(c.Symptom)
	}
	v, ok := fs.Value(c.Feature)
	return ok && c.Op.apply(v, c.Threshold)
}

// Step awards Points when any of its conditions holds.
type Step struct {
	AnyOf  []Condition `json:"any_of"`
	Points int         `json:"points"`
}

// Rule is an ordered list of steps. Only the first matching step counts,
// so "else" thresholds are written as later steps.
type Rule struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

func (r Rule) points(fs *FeatureSet) int {
	for _, s := range r.Steps {
		for _, c := range s.AnyOf {
			if c.holds(fs) {
				return s.Points
			}
		}
	}
	return 0
}

// Table holds the additive rules of one category.
type Table struct {
	Category Category `json:"category"`
	Rules    []Rule   `json:"rules"`
}

func gte(f string, t float64) Condition { return Condition{Feature: f, Op: OpGTE, Threshold: t} }
func gt(f string, t float64) Condition { return Condition{Feature: f, Op: OpGT, Threshold: t} }
func lte(f string, t float64) Condition { return Condition{Feature: f, Op: OpLTE, Threshold: t} }
func lt(f string, t float64) Condition { return Condition{Feature: f, Op: OpLT, Threshold: t} }

func symptomRule(symptom string, points int) Rule {
	return Rule{Name: symptom, Steps: []Step{{AnyOf: []Condition{{Symptom: symptom}}, Points: points}}}
}

// DefaultTables returns the rule tables for the four weighted categories.
// Each call returns fresh slices.
func DefaultTables() []Table {
	return []Table{
		{
			Category: CategoryCardiovascular,
			Rules: []Rule{
				{Name: "blood_pressure", Steps: []Step{
					{AnyOf: []Condition{gte(FeatureSystolic, 140), gte(FeatureDiastolic, 90)}, Points: 30},
					{AnyOf: []Condition{gte(FeatureSystolic, 130), gte(FeatureDiastolic, 85)}, Points: 20},
				}},
				{Name: "heart_rate", Steps: []Step{
					{AnyOf: []Condition{gt(FeatureHeartRate, 100)}, Points: 15},
					{AnyOf: []Condition{gt(FeatureHeartRate, 90)}, Points: 10},
				}},
				{Name: "ldl", Steps: []Step{{AnyOf: []Condition{gt(FeatureLDL, 130)}, Points: 10}}},
				{Name: "hdl", Steps: []Step{{AnyOf: []Condition{lt(FeatureHDL, 40)}, Points: 10}}},
				{Name: "triglycerides", Steps: []Step{{AnyOf: []Condition{gt(FeatureTrigs, 150)}, Points: 10}}},
				symptomRule("chest_pain", 20),
				symptomRule("difficulty_breathing", 20),
				symptomRule("fatigue", 10),
				symptomRule("dizziness", 10),
			},
		},
		{
			Category: CategoryDiabetes,
			Rules: []Rule{
				{Name: "glucose", Steps: []Step{
					{AnyOf: []Condition{gte(FeatureGlucose, 126)}, Points: 40},
					{AnyOf: []Condition{gte(FeatureGlucose, 100)}, Points: 20},
				}},
				{Name: "bmi", Steps: []Step{
					{AnyOf: []Condition{gte(FeatureBMI, 30)}, Points: 20},
					{AnyOf: []Condition{gte(FeatureBMI, 25)}, Points: 10},
				}},
				{Name: "age", Steps: []Step{{AnyOf: []Condition{gte(FeatureAge, 45)}, Points: 10}}},
				symptomRule("frequent_urination", 15),
				symptomRule("excessive_thirst", 15),
			},
		},
		{
			Category: CategoryMentalHealth,
			Rules: []Rule{
				{Name: "stress", Steps: []Step{
					{AnyOf: []Condition{gte(FeatureStress, 7)}, Points: 30},
					{AnyOf: []Condition{gte(FeatureStress, 5)}, Points: 15},
				}},
				{Name: "mood", Steps: []Step{
					{AnyOf: []Condition{lte(FeatureMood, 3)}, Points: 25},
					{AnyOf: []Condition{lte(FeatureMood, 5)}, Points: 10},
				}},
				{Name: "sleep", Steps: []Step{{AnyOf: []Condition{lt(FeatureSleep, 6)}, Points: 20}}},
				symptomRule("anxiety", 10),
				symptomRule("insomnia", 10),
			},
		},
		{
			Category: CategoryLifestyle,
			Rules: []Rule{
				{Name: "steps", Steps: []Step{
					{AnyOf: []Condition{lt(FeatureSteps, 5000)}, Points: 30},
					{AnyOf: []Condition{lt(FeatureSteps, 7500)}, Points: 15},
				}},
				{Name: "exercise", Steps: []Step{{AnyOf: []Condition{lt(FeatureExercise, 20)}, Points: 20}}},
				{Name: "bmi", Steps: []Step{
					{AnyOf: []Condition{gte(FeatureBMI, 30)}, Points: 20},
					{AnyOf: []Condition{gte(FeatureBMI, 25)}, Points: 10},
				}},
				{Name: "sleep", Steps: []Step{{AnyOf: []Condition{lt(FeatureSleep, 6)}, Points: 10}}},
			},
		},
	}
}

// weightScale is the fixed-point denominator of category weights. Weights
// are basis points so that their sum is checked exactly.
const weightScale = 10000

// DefaultWeights returns the overall-score weights in basis points.
func DefaultWeights() map[Category]int {
	return map[Category]int{
		CategoryCardiovascular: 3500,
		CategoryDiabetes:       2500,
		CategoryMentalHealth:   2000,
		CategoryLifestyle:      2000,
	}
}

// referencedFeatures lists the numeric features the tables read, sorted.
func referencedFeatures(tables []Table) []string {
	seen := make(map[string]struct{})
	for _, t := range tables {
		for _, r := range t.Rules {
			for _, s := range r.Steps {
				for _, c := range s.AnyOf {
					if c.Symptom == "" {
						seen[c.Feature] = struct{}{}
					}
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (c Condition) validate() error {
	if c.Symptom != "" {
		return nil
	}
	if c.Feature == "" {
		return fmt.Errorf("condition has neither feature nor symptom")
	}
	switch c.Op {
	case OpGTE, OpGT, OpLTE, OpLT:
		return nil
	}
	return fmt.Errorf("feature %s has unknown operator %q", c.Feature, c.Op)
}
