package pricing

import "testing"

func approxEqual(a, b float64) bool {
	const epsilon = 0.0001
	diff := a - b
	return diff > -epsilon && diff < epsilon
}

func TestCalculate_ExactAndWildcardMatches(t *testing.T) {
	calc := NewCalculator(nil)

	cases := []struct {
		name         string
		model        string
		inputTokens  int
		outputTokens int
		want         float64
	}{
		{"exact match", "gpt-4o", 1000, 1000, 0.005 + 0.015},
		{"longest wildcard wins over a shorter one", "gpt-4-turbo-preview", 1000, 500, 0.01*1 + 0.03*0.5},
		{"dated snapshot matches its family wildcard", "claude-3-5-sonnet-20240620", 2000, 1000, 0.003*2 + 0.015},
		{"fractional thousand-token scaling", "gemini-1.5-flash-001", 10000, 5000, 0.000075*10 + 0.0003*5},
		{"unmatched model prices at zero", "unknown-model", 1000, 1000, 0},
		{"zero tokens price at zero even for a known model", "gpt-4o", 0, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := calc.Calculate(tc.model, tc.inputTokens, tc.outputTokens)
			if !approxEqual(got, tc.want) {
				t.Errorf("Calculate(%q, %d, %d) = %v, want %v", tc.model, tc.inputTokens, tc.outputTokens, got, tc.want)
			}
		})
	}
}

func TestGetPricing_ResolvesToExpectedPattern(t *testing.T) {
	calc := NewCalculator(nil)

	cases := []struct {
		name        string
		model       string
		wantFound   bool
		wantPattern string
	}{
		{"exact match", "gpt-4o", true, "gpt-4o"},
		{"wildcard match picks the most specific pattern", "gpt-4-turbo-preview", true, "gpt-4-turbo*"},
		{"wildcard match across a dated snapshot", "claude-3-opus-20240229", true, "claude-3-opus*"},
		{"unrecognized model", "completely-unknown", false, ""},
		{"lookup is case-insensitive", "GPT-4O", true, "gpt-4o"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rate, found := calc.GetPricing(tc.model)
			if found != tc.wantFound {
				t.Fatalf("GetPricing(%q) found = %v, want %v", tc.model, found, tc.wantFound)
			}
			if found && rate.Model != tc.wantPattern {
				t.Errorf("GetPricing(%q).Model = %q, want %q", tc.model, rate.Model, tc.wantPattern)
			}
		})
	}
}

func TestAddPricing_InsertsAndOverwrites(t *testing.T) {
	calc := NewCalculator(nil)

	calc.AddPricing(ModelPricing{Model: "custom-model", InputCostPer1K: 0.001, OutputCostPer1K: 0.002})
	if got, want := calc.Calculate("custom-model", 1000, 1000), 0.001+0.002; !approxEqual(got, want) {
		t.Errorf("Calculate() for a newly added model = %v, want %v", got, want)
	}

	calc.AddPricing(ModelPricing{Model: "gpt-4o", InputCostPer1K: 0.999, OutputCostPer1K: 0.999})
	if got, want := calc.Calculate("gpt-4o", 1000, 1000), 0.999+0.999; !approxEqual(got, want) {
		t.Errorf("Calculate() after overwriting a default rate = %v, want %v", got, want)
	}
}

func TestAddPricing_OverwritesExistingWildcard(t *testing.T) {
	calc := NewCalculator(nil)

	calc.AddPricing(ModelPricing{Model: "gpt-4-turbo*", InputCostPer1K: 1, OutputCostPer1K: 1})
	rate, found := calc.GetPricing("gpt-4-turbo-preview")
	if !found {
		t.Fatal("GetPricing() after overwriting a wildcard pattern: found = false")
	}
	if rate.InputCostPer1K != 1 || rate.OutputCostPer1K != 1 {
		t.Errorf("GetPricing() after overwrite = %+v, want updated rate", rate)
	}
}

func BenchmarkCalculate_ExactMatch(b *testing.B) {
	calc := NewCalculator(nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = calc.Calculate("gpt-4o", 1000, 1000)
	}
}

func BenchmarkCalculate_WildcardMatch(b *testing.B) {
	calc := NewCalculator(nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = calc.Calculate("gpt-4-turbo-preview", 1000, 1000)
	}
}
