package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable means the external predictor produced no usable scores.
// Callers fall back to rule scoring.
var ErrUnavailable = errors.New("ml override unavailable")

// MLOverride is an optional external predictor whose scores replace the
// rule scores when it answers.
type MLOverride interface {
	Predict(ctx context.Context, fs *FeatureSet) (Scores, error)
}

// HTTPOverride posts the FeatureSet as JSON and expects
// {"scores": {"cardiovascular": 42.5, ...}} back.
type HTTPOverride struct {
	url    string
	client *http.Client
}

func NewHTTPOverride(url string, timeout time.Duration) *HTTPOverride {
	return &HTTPOverride{url: url, client: &http.Client{Timeout: timeout}}
}

type predictRequest struct {
	Features *FeatureSet `json:"features"`
}

type predictResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Predict never returns an error other than one wrapping ErrUnavailable.
// Unknown categories are dropped and values are clamped to [0, 100].
func (o *HTTPOverride) Predict(ctx context.Context, fs *FeatureSet) (Scores, error) {
	body, err := json.Marshal(predictRequest{Features: fs})
	if err != nil {
		return nil, fmt.Errorf("%w: encode features: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	scores := make(Scores, len(out.Scores))
	for name, v := range out.Scores {
		cat := Category(name)
		if _, known := scoreBands[cat]; !known {
			continue
		}
		scores[cat] = clamp(v)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no known categories in response", ErrUnavailable)
	}
	return scores, nil
}

// merge overlays override scores on the rule scores. Categories the
// predictor left out keep their rule value and extra ones are ignored.
func merge(rules, override Scores) Scores {
	out := make(Scores, len(rules))
	for cat, v := range rules {
		out[cat] = v
	}
	for cat, v := range override {
		if _, scored := rules[cat]; scored {
			out[cat] = clamp(v)
		}
	}
	return out
}
