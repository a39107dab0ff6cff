package risk

import "sort"

// Band is the severity tier a category score falls into.
type Band string

const (
	BandCritical Band = "critical"
	BandHigh     Band = "high"
	BandMedium   Band = "medium"
)

// threshold selects Band when the score is strictly above Above.
type threshold struct {
	Band  Band
	Above float64
}

// scoreBands lists each category's bands from most to least severe.
var scoreBands = map[Category][]threshold{
	CategoryCardiovascular: {{BandCritical, 70}, {BandHigh, 50}, {BandMedium, 30}},
	CategoryDiabetes:       {{BandHigh, 60}, {BandMedium, 40}},
	CategoryMentalHealth:   {{BandHigh, 50}, {BandMedium, 30}},
	CategoryLifestyle:      {{BandHigh, 40}, {BandMedium, 20}},
}

// Weight bands read BMI directly, inclusive.
const (
	bmiHigh   = 30
	bmiMedium = 25
)

// Fallback triggers select the medium band when the score alone selects
// nothing.
const (
	shortSleepHours   = 6
	minWeeklySessions = 3
)

type templateKey struct {
	Category Category
	Band     Band
}

type template struct {
	Priority    Priority
	Title       string
	Description string
	Actions     []string
}

var templates = map[templateKey]template{
	{CategoryCardiovascular, BandCritical}: {
		Priority:    PriorityHigh,
		Title:       "Critical Cardiovascular Assessment Required",
		Description: "Your cardiovascular risk is at a critical level. Immediate medical attention is recommended.",
		Actions: []string{
			"Schedule an urgent appointment with a cardiologist",
			"Begin daily blood pressure monitoring",
			"Start a heart-healthy Mediterranean diet",
			"Reduce sodium intake to less than 2000mg daily",
			"Consider stress reduction techniques",
		},
	},
	{CategoryCardiovascular, BandHigh}: {
		Priority:    PriorityHigh,
		Title:       "Cardiovascular Health Action Plan",
		Description: "Your cardiovascular risk is elevated. Take proactive steps to improve heart health.",
		Actions: []string{
			"Schedule a cardiovascular checkup within 2 weeks",
			"Monitor blood pressure twice daily",
			"Begin a structured walking program (start with 15 minutes daily)",
			"Reduce saturated fat intake",
			"Consider meditation or yoga for stress management",
		},
	},
	{CategoryCardiovascular, BandMedium}: {
		Priority:    PriorityMedium,
		Title:       "Heart Health Improvement Plan",
		Description: "Take steps to improve your cardiovascular health and prevent future issues.",
		Actions: []string{
			"Schedule a routine cardiovascular screening",
			"Exercise 30 minutes daily (moderate intensity)",
			"Implement DASH diet principles",
			"Monitor blood pressure weekly",
			"Practice deep breathing exercises",
		},
	},
	{CategoryDiabetes, BandHigh}: {
		Priority:    PriorityHigh,
		Title:       "Urgent Diabetes Risk Management",
		Description: "Your diabetes risk factors are significantly elevated. Immediate action is required.",
		Actions: []string{
			"Schedule comprehensive diabetes screening",
			"Begin blood glucose monitoring",
			"Consult with an endocrinologist",
			"Start a low-glycemic diet plan",
			"Track daily carbohydrate intake",
			"Implement portion control measures",
		},
	},
	{CategoryDiabetes, BandMedium}: {
		Priority:    PriorityMedium,
		Title:       "Diabetes Prevention Program",
		Description: "Take proactive steps to prevent diabetes development.",
		Actions: []string{
			"Schedule A1C blood test",
			"Implement portion control",
			"Replace refined carbs with whole grains",
			"Add 30 minutes of daily physical activity",
			"Monitor weight weekly",
		},
	},
	{CategoryMentalHealth, BandHigh}: {
		Priority:    PriorityHigh,
		Title:       "Mental Health Support Plan",
		Description: "Your mental well-being indicators suggest the need for professional support.",
		Actions: []string{
			"Schedule consultation with mental health professional",
			"Begin daily mindfulness practice",
			"Establish regular sleep schedule",
			"Create a stress management plan",
			"Consider joining support groups",
		},
	},
	{CategoryMentalHealth, BandMedium}: {
		Priority:    PriorityMedium,
		Title:       "Mental Wellness Enhancement",
		Description: "Enhance your mental well-being with these targeted actions.",
		Actions: []string{
			"Practice daily meditation (10 minutes)",
			"Maintain sleep hygiene routine",
			"Engage in regular physical activity",
			"Limit screen time before bed",
			"Consider journaling for stress relief",
		},
	},
	{CategoryLifestyle, BandHigh}: {
		Priority:    PriorityHigh,
		Title:       "Lifestyle Transformation Plan",
		Description: "Significant lifestyle changes are recommended to improve your health.",
		Actions: []string{
			"Create a structured exercise schedule",
			"Develop healthy meal planning routine",
			"Implement regular sleep schedule",
			"Take regular breaks during work",
			"Find an exercise buddy or join fitness classes",
			"Set up regular health check-ins",
		},
	},
	{CategoryLifestyle, BandMedium}: {
		Priority:    PriorityMedium,
		Title:       "Healthy Lifestyle Integration",
		Description: "Incorporate these healthy habits into your daily routine.",
		Actions: []string{
			"Start with 10-minute exercise sessions",
			"Take walking breaks during work",
			"Prepare healthy snacks in advance",
			"Create a bedtime routine",
			"Stay hydrated throughout the day",
		},
	},
	{CategoryWeight, BandHigh}: {
		Priority:    PriorityHigh,
		Title:       "Weight Management Program",
		Description: "A structured weight management plan is recommended for your health.",
		Actions: []string{
			"Consult with a registered dietitian",
			"Start food diary tracking",
			"Begin portion control practice",
			"Schedule regular weigh-ins",
			"Join a weight management support group",
			"Create a realistic weight loss timeline",
		},
	},
	{CategoryWeight, BandMedium}: {
		Priority:    PriorityMedium,
		Title:       "Weight Optimization Plan",
		Description: "Take steps to achieve and maintain a healthy weight.",
		Actions: []string{
			"Monitor daily caloric intake",
			"Implement portion control strategies",
			"Increase daily physical activity",
			"Choose whole foods over processed options",
			"Track weekly measurements",
		},
	},
}

// selectBand returns the most severe band the score qualifies for, or ""
// when it qualifies for none.
func selectBand(cat Category, score float64) Band {
	for _, t := range scoreBands[cat] {
		if score > t.Above {
			return t.Band
		}
	}
	return ""
}

// fallbackBand applies the feature triggers that select the medium band
// on their own.
func fallbackBand(cat Category, fs *FeatureSet) Band {
	if fs == nil {
		return ""
	}
	switch cat {
	case CategoryMentalHealth:
		if sleep, ok := fs.Value(FeatureSleep); ok && sleep < shortSleepHours {
			return BandMedium
		}
	case CategoryLifestyle:
		if n, ok := fs.Value(FeatureSessions7d); ok && n < minWeeklySessions {
			return BandMedium
		}
	}
	return ""
}

func weightBand(fs *FeatureSet) Band {
	if fs == nil || fs.BMI == nil {
		return ""
	}
	switch {
	case *fs.BMI >= bmiHigh:
		return BandHigh
	case *fs.BMI >= bmiMedium:
		return BandMedium
	}
	return ""
}

// Recommend maps scores and features to at most one recommendation per
// category, ordered by priority and then by category. The returned
// recommendations are unsaved and pending.
func Recommend(scores Scores, fs *FeatureSet) []*Recommendation {
	out := make([]*Recommendation, 0, len(categoryOrder))
	seen := make(map[Category]bool)
	add := func(cat Category, band Band) {
		if band == "" || seen[cat] {
			return
		}
		tpl, ok := templates[templateKey{cat, band}]
		if !ok {
			return
		}
		seen[cat] = true
		out = append(out, &Recommendation{
			Category:    cat,
			Band:        band,
			Priority:    tpl.Priority,
			Title:       tpl.Title,
			Description: tpl.Description,
			Actions:     append([]string(nil), tpl.Actions...),
			Status:      StatusPending,
		})
	}

	for _, cat := range []Category{CategoryCardiovascular, CategoryDiabetes, CategoryMentalHealth, CategoryLifestyle} {
		band := selectBand(cat, scores[cat])
		if band == "" {
			band = fallbackBand(cat, fs)
		}
		add(cat, band)
	}
	add(CategoryWeight, weightBand(fs))

	sort.SliceStable(out, func(i, j int) bool {
		if pi, pj := out[i].Priority.rank(), out[j].Priority.rank(); pi != pj {
			return pi > pj
		}
		return categoryOrder[out[i].Category] < categoryOrder[out[j].Category]
	})
	return out
}
