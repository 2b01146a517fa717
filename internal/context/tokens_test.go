package context

import "testing"

func TestCountTokens_NonEmptyTextIsPositive(t *testing.T) {
	n := CountTokens("What is the average length of stay for ICU patients?")
	if n <= 0 {
		t.Fatalf("CountTokens = %d, want > 0", n)
	}
}

func TestCountTokens_LongerTextCountsMore(t *testing.T) {
	short := CountTokens("ICU mortality")
	long := CountTokens("ICU mortality rate broken down by age band and gender across every admission")
	if long <= short {
		t.Fatalf("expected a longer text to have a higher token count: short=%d long=%d", short, long)
	}
}

func TestCountTokens_Deterministic(t *testing.T) {
	text := "readmission rate within 30 days of discharge"
	if CountTokens(text) != CountTokens(text) {
		t.Fatalf("expected CountTokens to be deterministic")
	}
}
