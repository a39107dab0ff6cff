package tags

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Frequent Urination":   "frequent_urination",
		"  excessive-thirst ":  "excessive_thirst",
		"insomnia":             "insomnia",
		"shortness  of breath": "shortness_of_breath",
		"__":                   "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeAll(t *testing.T) {
	got := NormalizeAll([]string{"Anxiety", "anxiety", "", "Insomnia"})
	want := []string{"anxiety", "insomnia"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if NormalizeAll(nil) == nil {
		t.Error("expected non-nil slice")
	}
}
