// request_context.go - Request tracking and logging system

package common

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestContext tracks one batch request: its id, per-step timing and the
// tokens spent. Pair goroutines get child contexts through WithPair; all
// children share the same step and token accumulators.
type RequestContext struct {
	RequestID string
	StartTime time.Time

	entry *logrus.Entry
	state *requestState
}

type requestState struct {
	mu          sync.Mutex
	steps       []StepLog
	totalTokens TokenUsage
}

// StepLog represents a single processing step
type StepLog struct {
	Name      string      `json:"name"`
	Pair      string      `json:"pair,omitempty"`
	StartTime time.Time   `json:"start_time"`
	Duration  int64       `json:"duration_ms"`
	Status    string      `json:"status"` // "success", "failed", "skipped"
	Tokens    *TokenUsage `json:"tokens,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// TokenUsage tracks API token consumption
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	CostKRW      float64 `json:"cost_krw"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.CostUSD += other.CostUSD
	u.CostKRW += other.CostKRW
}

// Pricing converts token counts into money. Prices are per 1M tokens in USD.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
	USDToKRW         float64
}

// Cost computes USD and KRW cost from token counts
func (p Pricing) Cost(inputTokens, outputTokens int) TokenUsage {
	inputCost := float64(inputTokens) * p.InputPerMillion / 1_000_000
	outputCost := float64(outputTokens) * p.OutputPerMillion / 1_000_000
	costUSD := inputCost + outputCost

	return TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      costUSD,
		CostKRW:      costUSD * p.USDToKRW,
	}
}

// NewRequestContext creates a new request tracking context
func NewRequestContext(logger *logrus.Logger, label string) *RequestContext {
	reqID := uuid.New().String()
	entry := logger.WithField("request_id", reqID)
	entry.Infof("New request received: %s", label)

	return &RequestContext{
		RequestID: reqID,
		StartTime: time.Now(),
		entry:     entry,
		state:     &requestState{},
	}
}

// WithPair returns a child context whose log lines carry the pair key.
func (rc *RequestContext) WithPair(key string) *RequestContext {
	return &RequestContext{
		RequestID: rc.RequestID,
		StartTime: rc.StartTime,
		entry:     rc.entry.WithField("pair", key),
		state:     rc.state,
	}
}

// Step is an in-flight processing step started by StartStep.
type Step struct {
	rc    *RequestContext
	name  string
	start time.Time
}

// StartStep begins tracking a new processing step
func (rc *RequestContext) StartStep(name string) *Step {
	rc.entry.Debugf("┌── %s", name)
	return &Step{rc: rc, name: name, start: time.Now()}
}

// End completes the step and records its timing
func (s *Step) End(status string, tokens *TokenUsage, err error) {
	duration := time.Since(s.start).Milliseconds()

	stepLog := StepLog{
		Name:      s.name,
		StartTime: s.start,
		Duration:  duration,
		Status:    status,
		Tokens:    tokens,
	}
	if pair, ok := s.rc.entry.Data["pair"].(string); ok {
		stepLog.Pair = pair
	}

	if err != nil {
		stepLog.Error = err.Error()
		s.rc.entry.Errorf("└── FAILED %s (%.2fs): %v", s.name, float64(duration)/1000, err)
	} else {
		msg := fmt.Sprintf("└── %s %s: %.2fs", s.name, status, float64(duration)/1000)
		if tokens != nil {
			msg += fmt.Sprintf(" | tokens: %d in + %d out = %d | cost: ₩%.2f",
				tokens.InputTokens, tokens.OutputTokens, tokens.TotalTokens, tokens.CostKRW)
		}
		s.rc.entry.Info(msg)
	}

	st := s.rc.state
	st.mu.Lock()
	st.steps = append(st.steps, stepLog)
	if tokens != nil && err == nil {
		st.totalTokens.Add(*tokens)
	}
	st.mu.Unlock()
}

// Steps returns a copy of the recorded steps.
func (rc *RequestContext) Steps() []StepLog {
	rc.state.mu.Lock()
	defer rc.state.mu.Unlock()
	return append([]StepLog(nil), rc.state.steps...)
}

// TotalTokens returns the tokens accumulated so far across all pairs.
func (rc *RequestContext) TotalTokens() TokenUsage {
	rc.state.mu.Lock()
	defer rc.state.mu.Unlock()
	return rc.state.totalTokens
}

// GetSummary returns a final summary of the entire request
func (rc *RequestContext) GetSummary() map[string]interface{} {
	totalDuration := time.Since(rc.StartTime).Milliseconds()
	steps := rc.Steps()
	tokens := rc.TotalTokens()

	// Build step breakdown
	stepBreakdown := make(map[string]int64)
	for _, step := range steps {
		stepBreakdown[step.Name] += step.Duration
	}

	rc.entry.Infof("Summary | duration: %.2fs | steps: %d | tokens: %s in + %s out = %s | cost: ₩%.2f",
		float64(totalDuration)/1000,
		len(steps),
		formatNumber(tokens.InputTokens),
		formatNumber(tokens.OutputTokens),
		formatNumber(tokens.TotalTokens),
		tokens.CostKRW)

	return map[string]interface{}{
		"request_id":        rc.RequestID,
		"total_duration_ms": totalDuration,
		"step_breakdown":    stepBreakdown,
		"total_steps":       len(steps),
	}
}

// LogInfo logs info-level message with request ID prefix
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	rc.entry.Infof(format, args...)
}

// LogWarning logs warning-level message with request ID prefix
func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	rc.entry.Warnf(format, args...)
}

// LogError logs error-level message with request ID prefix
func (rc *RequestContext) LogError(format string, args ...interface{}) {
	rc.entry.Errorf(format, args...)
}

// formatNumber adds comma separators to numbers
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n%1000000)/1000, n%1000)
}
