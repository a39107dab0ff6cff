package vitals

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

// BloodPressure is the structured value of a blood_pressure reading.
type BloodPressure struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Scalar decodes a numeric reading. present is false for a null value.
// Strings, objects and negative numbers are data errors.
func (m *Measurement) Scalar() (v float64, present bool, err error) {
	if isNull(m.Value) {
		return 0, false, nil
	}
	if err := json.Unmarshal(m.Value, &v); err != nil {
		return 0, false, apperr.Data("%s value %s is not numeric", m.Type, string(m.Value))
	}
	if err := checkFinite(m.Type, v); err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// BloodPressure decodes a blood pressure reading given either as
// {"systolic":120,"diastolic":80} or as the string "120/80".
func (m *Measurement) BloodPressure() (bp BloodPressure, present bool, err error) {
	if isNull(m.Value) {
		return bp, false, nil
	}
	var s string
	if json.Unmarshal(m.Value, &s) == nil {
		parts := strings.Split(s, "/")
		if len(parts) != 2 {
			return bp, false, apperr.Data("blood_pressure value %q is not systolic/diastolic", s)
		}
		sys, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		dia, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return bp, false, apperr.Data("blood_pressure value %q is not numeric", s)
		}
		bp = BloodPressure{Systolic: sys, Diastolic: dia}
	} else {
		var raw struct {
			Systolic  *float64 `json:"systolic"`
			Diastolic *float64 `json:"diastolic"`
		}
		if err := json.Unmarshal(m.Value, &raw); err != nil || raw.Systolic == nil || raw.Diastolic == nil {
			return bp, false, apperr.Data("blood_pressure value %s needs numeric systolic and diastolic", string(m.Value))
		}
		bp = BloodPressure{Systolic: *raw.Systolic, Diastolic: *raw.Diastolic}
	}
	if err := checkFinite(TypeBloodPressure, bp.Systolic); err != nil {
		return bp, false, err
	}
	if err := checkFinite(TypeBloodPressure, bp.Diastolic); err != nil {
		return bp, false, err
	}
	return bp, true, nil
}

func checkFinite(t Type, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperr.Data("%s value is not a finite number", t)
	}
	if v < 0 {
		return apperr.Data("%s value %g is negative", t, v)
	}
	return nil
}
