package report

import (
	"fmt"

	"github.com/revlab/sessiond/internal/event"
)

// Survey instruments recognized in survey_response payloads.
const (
	instrumentSUS     = "SUS"
	instrumentNASATLX = "NASA_TLX"
	instrumentTrust   = "Trust"
)

func (b *Builder) scoreSurveys(r *Report, events []event.Event) {
	for _, e := range events {
		if e.Type != event.SurveyResponse {
			continue
		}
		instrument := stringField(e.Value, "instrument")
		responses, _ := e.Value["responses"].(map[string]interface{})
		switch instrument {
		case instrumentSUS:
			r.SUSScore = susScore(responses)
		case instrumentNASATLX:
			r.NASATLXMean = meanResponse(responses)
		case instrumentTrust:
			r.TrustMean = meanResponse(responses)
		}
	}
}

// susScore computes the System Usability Scale score from responses keyed
// "Q1".."Q10" on a 1-5 scale. Odd items contribute (v-1), even items (5-v);
// the sum is scaled by 2.5 onto 0-100. Returns nil if any item is missing.
func susScore(responses map[string]interface{}) *float64 {
	if responses == nil {
		return nil
	}
	total := 0.0
	for i := 1; i <= 10; i++ {
		v, ok := numericValue(responses[fmt.Sprintf("Q%d", i)])
		if !ok {
			return nil
		}
		if i%2 == 1 {
			total += v - 1
		} else {
			total += 5 - v
		}
	}
	score := total * 2.5
	return &score
}

// meanResponse averages the numeric values of a response map; nil if none.
func meanResponse(responses map[string]interface{}) *float64 {
	sum, n := 0.0, 0
	for _, raw := range responses {
		if v, ok := numericValue(raw); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// numericValue accepts the numeric types that survive a JSON round trip.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
