package common

import (
	"io"
	"math"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPricingCost(t *testing.T) {
	p := Pricing{InputPerMillion: 0.30, OutputPerMillion: 2.50, USDToKRW: 1400}

	usage := p.Cost(1_000_000, 200_000)

	if usage.TotalTokens != 1_200_000 {
		t.Fatalf("expected 1200000 total tokens, got %d", usage.TotalTokens)
	}
	if math.Abs(usage.CostUSD-0.80) > 1e-9 {
		t.Fatalf("expected $0.80, got %f", usage.CostUSD)
	}
	if math.Abs(usage.CostKRW-1120) > 1e-6 {
		t.Fatalf("expected ₩1120, got %f", usage.CostKRW)
	}
}

func TestStepsAndTokensAcrossPairs(t *testing.T) {
	rc := NewRequestContext(quietLogger(), "test")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pair := rc.WithPair("서울_1반_홍길동")
			step := pair.StartStep("call_gemini_api")
			step.End("success", &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, nil)
		}()
	}
	wg.Wait()

	steps := rc.Steps()
	if len(steps) != 8 {
		t.Fatalf("expected 8 steps, got %d", len(steps))
	}
	if steps[0].Pair != "서울_1반_홍길동" {
		t.Fatalf("expected pair key on step, got %q", steps[0].Pair)
	}
	if got := rc.TotalTokens().TotalTokens; got != 120 {
		t.Fatalf("expected 120 tokens, got %d", got)
	}

	summary := rc.GetSummary()
	if summary["total_steps"] != 8 {
		t.Fatalf("unexpected summary %v", summary)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[int]string{
		7:         "7",
		1234:      "1,234",
		1_002_003: "1,002,003",
	}
	for in, want := range cases {
		if got := formatNumber(in); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", in, got, want)
		}
	}
}
