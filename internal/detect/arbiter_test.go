package detect

import "testing"

func TestArbitrate(t *testing.T) {
	t.Run("empty input returns nil", func(t *testing.T) {
		if attr := Arbitrate(nil); attr != nil {
			t.Errorf("expected nil, got %+v", attr)
		}
	})

	t.Run("single candidate has no alternatives", func(t *testing.T) {
		attr := Arbitrate([]Attribution{{Company: "openai", Confidence: 0.9}})
		if attr == nil {
			t.Fatal("expected an attribution")
		}
		if attr.Company != "openai" || len(attr.Alternatives) != 0 {
			t.Errorf("unexpected result: %+v", attr)
		}
	})

	t.Run("selects highest confidence with descending alternatives", func(t *testing.T) {
		candidates := []Attribution{
			{Company: "a", Confidence: 0.6},
			{Company: "b", Confidence: 0.9},
			{Company: "c", Confidence: 0.7},
		}
		attr := Arbitrate(candidates)
		if attr == nil {
			t.Fatal("expected an attribution")
		}
		if attr.Company != "b" {
			t.Errorf("expected b, got %s", attr.Company)
		}
		if len(attr.Alternatives) != 2 {
			t.Fatalf("expected 2 alternatives, got %d", len(attr.Alternatives))
		}
		if attr.Alternatives[0].Confidence != 0.7 || attr.Alternatives[1].Confidence != 0.6 {
			t.Errorf("alternatives out of order: %+v", attr.Alternatives)
		}
	})

	t.Run("first-discovered producer wins confidence ties", func(t *testing.T) {
		candidates := []Attribution{
			{Company: "first", Method: MethodUserAgent, Confidence: 0.9},
			{Company: "second", Method: MethodIPRange, Confidence: 0.9},
		}
		attr := Arbitrate(candidates)
		if attr.Company != "first" || attr.Method != MethodUserAgent {
			t.Errorf("expected first producer to win the tie, got %+v", attr)
		}
	})

	t.Run("does not mutate the input slice", func(t *testing.T) {
		candidates := []Attribution{
			{Company: "a", Confidence: 0.6},
			{Company: "b", Confidence: 0.9},
		}
		Arbitrate(candidates)
		if candidates[0].Company != "a" || candidates[1].Company != "b" {
			t.Errorf("input slice mutated: %+v", candidates)
		}
	})
}
