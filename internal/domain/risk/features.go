package risk

import (
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/healthrisk/healthrisk/internal/domain/identity"
	"github.com/healthrisk/healthrisk/internal/domain/records"
	"github.com/healthrisk/healthrisk/internal/domain/vitals"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
	"github.com/healthrisk/healthrisk/pkg/tags"
)

// MaxReadings caps how many of the most recent readings feed one
// assessment.
const MaxReadings = 100

// Feature names used by the rule tables. Vital features are keyed by
// measurement type, except blood pressure which splits in two.
const (
	FeatureAge        = "age"
	FeatureBMI        = "bmi"
	FeatureSystolic   = "systolic"
	FeatureDiastolic  = "diastolic"
	FeatureHeartRate  = string(vitals.TypeHeartRate)
	FeatureGlucose    = string(vitals.TypeBloodGlucose)
	FeatureLDL        = string(vitals.TypeCholesterolLDL)
	FeatureHDL        = string(vitals.TypeCholesterolHDL)
	FeatureTrigs      = string(vitals.TypeTriglycerides)
	FeatureStress     = string(vitals.TypeStressLevel)
	FeatureMood       = string(vitals.TypeMood)
	FeatureSleep      = string(vitals.TypeSleep)
	FeatureSteps      = string(vitals.TypeSteps)
	FeatureExercise   = string(vitals.TypeExercise)
	FeatureSessions7d = "exercise_sessions_7d"
)

// Gender codes.
const (
	GenderMale    = 0
	GenderFemale  = 1
	GenderUnknown = 2
)

// Aggregate summarises the readings of one feature. StdDev is the
// population standard deviation.
type Aggregate struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// FeatureSet is the normalized input to scoring. Absent features are nil
// or missing from Vitals and mean "no signal", never "healthy".
type FeatureSet struct {
	Age                 *int                 `json:"age,omitempty"`
	GenderCode          int                  `json:"gender_code"`
	BMI                 *float64             `json:"bmi,omitempty"`
	Vitals              map[string]Aggregate `json:"vitals"`
	Symptoms            []string             `json:"symptoms"`
	Conditions          []string             `json:"conditions"`
	DiagnosisCount      int                  `json:"diagnosis_count"`
	DaysSinceLastRecord *int                 `json:"days_since_last_record,omitempty"`
	ExerciseSessions7d  *int                 `json:"exercise_sessions_7d,omitempty"`
}

// Value returns a numeric feature by name. Vital features resolve to the
// mean of their readings. A nil FeatureSet has no features.
func (fs *FeatureSet) Value(name string) (float64, bool) {
	if fs == nil {
		return 0, false
	}
	switch name {
	case FeatureAge:
		if fs.Age == nil {
			return 0, false
		}
		return float64(*fs.Age), true
	case FeatureBMI:
		if fs.BMI == nil {
			return 0, false
		}
		return *fs.BMI, true
	case FeatureSessions7d:
		if fs.ExerciseSessions7d == nil {
			return 0, false
		}
		return float64(*fs.ExerciseSessions7d), true
	}
	agg, ok := fs.Vitals[name]
	if !ok {
		return 0, false
	}
	return agg.Mean, true
}

// HasSymptom reports whether s is among the symptom tags, in any order.
func (fs *FeatureSet) HasSymptom(s string) bool {
	return fs != nil && slices.Contains(fs.Symptoms, s)
}

// column accumulates the readings of one feature. Readings without a value
// are counted and later imputed with the column mean.
type column struct {
	values  []float64
	missing int
}

func (c *column) aggregate() (Aggregate, bool) {
	if len(c.values) == 0 {
		return Aggregate{}, false
	}
	agg := Aggregate{Min: c.values[0], Max: c.values[0], Count: len(c.values) + c.missing}
	var sum float64
	for _, v := range c.values {
		sum += v
		agg.Min = math.Min(agg.Min, v)
		agg.Max = math.Max(agg.Max, v)
	}
	agg.Mean = sum / float64(len(c.values))
	var sq float64
	for _, v := range c.values {
		sq += (v - agg.Mean) * (v - agg.Mean)
	}
	// imputed readings sit on the mean and add nothing to the deviation
	agg.StdDev = math.Sqrt(sq / float64(agg.Count))
	return agg, true
}

// Normalize builds the FeatureSet for one patient as of asOf. Rejected
// readings are ignored and only the MaxReadings most recent of the rest
// are aggregated. Malformed dates or values fail the whole call with a
// data error.
func Normalize(profile *identity.PatientProfile, measurements []*vitals.Measurement, recs []*records.MedicalRecord, asOf time.Time) (*FeatureSet, error) {
	if profile == nil {
		return nil, apperr.Data("patient profile is required")
	}
	fs := &FeatureSet{
		GenderCode: genderCode(profile.Gender),
		Vitals:     make(map[string]Aggregate),
		Conditions: tags.NormalizeAll(profile.Conditions),
	}

	if profile.DateOfBirth != nil && strings.TrimSpace(*profile.DateOfBirth) != "" {
		age, err := ageAt(*profile.DateOfBirth, asOf)
		if err != nil {
			return nil, err
		}
		fs.Age = &age
	}

	readings := recent(measurements)
	cols := make(map[string]*column)
	col := func(name string) *column {
		if c, ok := cols[name]; ok {
			return c
		}
		c := &column{}
		cols[name] = c
		return c
	}
	symptoms := make([]string, 0)
	weekAgo := asOf.Add(-7 * 24 * time.Hour)
	var sessions *int
	var latestWeight *float64

	for _, m := range readings {
		symptoms = append(symptoms, m.Tags...)
		switch m.Type {
		case vitals.TypeCustom:
			continue
		case vitals.TypeBloodPressure:
			bp, present, err := m.BloodPressure()
			if err != nil {
				return nil, err
			}
			if !present {
				col(FeatureSystolic).missing++
				col(FeatureDiastolic).missing++
				continue
			}
			col(FeatureSystolic).values = append(col(FeatureSystolic).values, bp.Systolic)
			col(FeatureDiastolic).values = append(col(FeatureDiastolic).values, bp.Diastolic)
			continue
		case vitals.TypeExercise:
			if sessions == nil {
				sessions = new(int)
			}
			if m.MeasuredAt.After(weekAgo) && !m.MeasuredAt.After(asOf) {
				*sessions++
			}
		}
		v, present, err := m.Scalar()
		if err != nil {
			return nil, err
		}
		c := col(string(m.Type))
		if !present {
			c.missing++
			continue
		}
		c.values = append(c.values, v)
		if m.Type == vitals.TypeWeight && latestWeight == nil {
			w := v
			latestWeight = &w
		}
	}
	for name, c := range cols {
		if agg, ok := c.aggregate(); ok {
			fs.Vitals[name] = agg
		}
	}
	fs.ExerciseSessions7d = sessions

	bmi, err := bodyMassIndex(profile, latestWeight)
	if err != nil {
		return nil, err
	}
	if bmi == nil {
		if agg, ok := fs.Vitals[FeatureBMI]; ok {
			v := agg.Mean
			bmi = &v
		}
	}
	fs.BMI = bmi

	codes := make(map[string]struct{})
	var latest time.Time
	for _, r := range recs {
		if r.RecordDate.IsZero() {
			return nil, apperr.Data("medical record %s has no record_date", r.ID)
		}
		for _, code := range r.ICDCodes {
			if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
				codes[code] = struct{}{}
			}
		}
		symptoms = append(symptoms, r.Symptoms...)
		if r.RecordDate.After(latest) {
			latest = r.RecordDate
		}
	}
	fs.DiagnosisCount = len(codes)
	if !latest.IsZero() {
		days := wholeDaysBetween(latest, asOf)
		fs.DaysSinceLastRecord = &days
	}

	fs.Symptoms = tags.NormalizeAll(symptoms)
	sort.Strings(fs.Symptoms)
	return fs, nil
}

// recent drops rejected readings and returns at most MaxReadings of the
// rest, newest first. The input slice is not modified.
func recent(measurements []*vitals.Measurement) []*vitals.Measurement {
	out := make([]*vitals.Measurement, 0, len(measurements))
	for _, m := range measurements {
		if m == nil || m.ValidationStatus == vitals.ValidationRejected {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MeasuredAt.After(out[j].MeasuredAt) })
	if len(out) > MaxReadings {
		out = out[:MaxReadings]
	}
	return out
}

func genderCode(g *string) int {
	if g == nil {
		return GenderUnknown
	}
	switch strings.ToLower(strings.TrimSpace(*g)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	}
	return GenderUnknown
}

// ageAt returns whole years elapsed, comparing calendar month and day so a
// birthday counts only once it has been reached.
func ageAt(dob string, asOf time.Time) (int, error) {
	born, err := time.Parse("2006-01-02", strings.TrimSpace(dob))
	if err != nil {
		return 0, apperr.Wrap(apperr.KindData, "invalid date_of_birth", err)
	}
	asOf = asOf.UTC()
	if born.After(asOf) {
		return 0, apperr.Data("date_of_birth %s is in the future", dob)
	}
	age := asOf.Year() - born.Year()
	if asOf.Month() < born.Month() || (asOf.Month() == born.Month() && asOf.Day() < born.Day()) {
		age--
	}
	return age, nil
}

// bodyMassIndex uses the profile weight, falling back to the newest weight
// reading. It returns nil when height or weight is unknown.
func bodyMassIndex(p *identity.PatientProfile, latestWeight *float64) (*float64, error) {
	weight := p.WeightKG
	if weight == nil {
		weight = latestWeight
	}
	if p.HeightCM == nil || weight == nil {
		return nil, nil
	}
	if *p.HeightCM <= 0 || math.IsNaN(*p.HeightCM) {
		return nil, apperr.Data("height must be positive, got %g", *p.HeightCM)
	}
	if *weight <= 0 || math.IsNaN(*weight) {
		return nil, apperr.Data("weight must be positive, got %g", *weight)
	}
	m := *p.HeightCM / 100
	bmi := *weight / (m * m)
	return &bmi, nil
}

// wholeDaysBetween counts UTC calendar days from then to now. A date in
// the future counts as zero.
func wholeDaysBetween(then, now time.Time) int {
	from := then.UTC().Truncate(24 * time.Hour)
	to := now.UTC().Truncate(24 * time.Hour)
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / (24 * time.Hour))
}
