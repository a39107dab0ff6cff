package vitals

// Range is an inclusive normal interval.
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Canonical normal ranges. The systolic bound of 140 is the single
// reference used everywhere a reading is flagged.
var (
	SystolicRange  = Range{Min: 90, Max: 140}
	DiastolicRange = Range{Min: 60, Max: 90}
)

var normalRanges = map[Type]Range{
	TypeBloodGlucose:     {Min: 70, Max: 140},
	TypeHeartRate:        {Min: 60, Max: 100},
	TypeTemperature:      {Min: 36.1, Max: 37.2},
	TypeOxygenSaturation: {Min: 95, Max: 100},
	TypeRespiratoryRate:  {Min: 12, Max: 20},
	TypeBMI:              {Min: 18.5, Max: 24.9},
}

// plausible bounds reject readings no instrument could produce.
var plausible = map[Type]Range{
	TypeBloodGlucose:     {Min: 10, Max: 1500},
	TypeHeartRate:        {Min: 20, Max: 300},
	TypeTemperature:      {Min: 25, Max: 45},
	TypeWeight:           {Min: 0.5, Max: 700},
	TypeBMI:              {Min: 5, Max: 150},
	TypeBodyFat:          {Min: 1, Max: 80},
	TypeSleep:            {Min: 0, Max: 24},
	TypeSteps:            {Min: 0, Max: 200000},
	TypeExercise:         {Min: 0, Max: 1440},
	TypeCalories:         {Min: 0, Max: 20000},
	TypeOxygenSaturation: {Min: 40, Max: 100},
	TypeRespiratoryRate:  {Min: 2, Max: 80},
	TypeStressLevel:      {Min: 0, Max: 10},
	TypeMood:             {Min: 0, Max: 10},
	TypePainLevel:        {Min: 0, Max: 10},
	TypeCholesterolLDL:   {Min: 0, Max: 1000},
	TypeCholesterolHDL:   {Min: 0, Max: 300},
	TypeTriglycerides:    {Min: 0, Max: 5000},
}

var (
	plausibleSystolic  = Range{Min: 40, Max: 300}
	plausibleDiastolic = Range{Min: 20, Max: 200}
)

// NormalRange returns the normal interval for scalar types that have one.
func NormalRange(t Type) (Range, bool) {
	r, ok := normalRanges[t]
	return r, ok
}

// Abnormal reports whether a decoded reading falls outside its normal
// range. Types without a range and null values are never abnormal.
func (m *Measurement) Abnormal() (bool, error) {
	if m.Type == TypeBloodPressure {
		bp, ok, err := m.BloodPressure()
		if err != nil || !ok {
			return false, err
		}
		return !SystolicRange.Contains(bp.Systolic) || !DiastolicRange.Contains(bp.Diastolic), nil
	}
	r, ok := normalRanges[m.Type]
	if !ok {
		return false, nil
	}
	v, present, err := m.Scalar()
	if err != nil || !present {
		return false, err
	}
	return !r.Contains(v), nil
}
