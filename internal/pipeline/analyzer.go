// analyzer.go - Batch orchestration: pair uploads, evaluate each pair, persist results

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/studyhub/study_eval_gemini/internal/ai"
	"github.com/studyhub/study_eval_gemini/internal/common"
	"github.com/studyhub/study_eval_gemini/internal/processor"
	"github.com/studyhub/study_eval_gemini/internal/ratelimit"
	"github.com/studyhub/study_eval_gemini/internal/storage"
)

// Pair result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error categories for failures that happen outside the model call.
const (
	CategoryExtraction = "extraction_error"
	CategoryEmpty      = "empty_content"
	CategoryParse      = "parse_error"
	CategoryAdmission  = "admission_error"
)

// ResultSaver persists a parsed evaluation.
type ResultSaver interface {
	Save(ctx context.Context, rec *storage.AnalysisRecord) error
}

// ResponseArchiver keeps raw model answers; failures are logged only.
type ResponseArchiver interface {
	Archive(ctx context.Context, doc storage.RawResponse) error
}

// Config wires an Analyzer.
type Config struct {
	Evaluator ai.Evaluator
	Prompt    *ai.SystemPrompt
	Limiter   *ratelimit.Limiter
	Store     ResultSaver
	Archive   ResponseArchiver // optional
	// MaxImageDimension bounds the longest side of photos sent to the model.
	MaxImageDimension int
}

// Options are per-batch switches.
type Options struct {
	// IncludeUnmatched also evaluates keys present on only one side.
	IncludeUnmatched bool
}

// Analyzer runs the evaluation pipeline over uploaded batches. It is safe for
// concurrent use; the shared limiter serialises model calls across requests.
type Analyzer struct {
	evaluator ai.Evaluator
	prompt    *ai.SystemPrompt
	limiter   *ratelimit.Limiter
	store     ResultSaver
	archive   ResponseArchiver
	maxImgDim int
}

// NewAnalyzer creates an Analyzer. A nil Archive discards raw responses.
func NewAnalyzer(cfg Config) *Analyzer {
	archive := cfg.Archive
	if archive == nil {
		archive = storage.NoopArchive{}
	}
	return &Analyzer{
		evaluator: cfg.Evaluator,
		prompt:    cfg.Prompt,
		limiter:   cfg.Limiter,
		store:     cfg.Store,
		archive:   archive,
		maxImgDim: cfg.MaxImageDimension,
	}
}

// PairResult is the outcome reported for one pair.
type PairResult struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	// AnalysisResult is the parsed object on success, or the raw model text
	// when parsing failed.
	AnalysisResult interface{}        `json:"analysis_result,omitempty"`
	TotalScore     *int               `json:"total_score,omitempty"`
	PhotoCount     int                `json:"photo_count"`
	PhotosAttached int                `json:"photos_attached"`
	RecordID       *int64             `json:"record_id,omitempty"`
	Error          string             `json:"error,omitempty"`
	ErrorCategory  string             `json:"error_category,omitempty"`
	StorageError   string             `json:"storage_error,omitempty"`
	Truncated      bool               `json:"prompt_truncated,omitempty"`
	Tokens         *common.TokenUsage `json:"tokens,omitempty"`
}

// BatchSummary aggregates a batch.
type BatchSummary struct {
	TotalPlanFiles   int               `json:"total_plan_files"`
	TotalReportFiles int               `json:"total_report_files"`
	MatchedCount     int               `json:"matched_count"`
	ProcessedCount   int               `json:"processed_count"`
	SuccessCount     int               `json:"success_count"`
	ErrorCount       int               `json:"error_count"`
	UnmatchedPlans   []string          `json:"unmatched_plans"`
	UnmatchedReports []string          `json:"unmatched_reports"`
	DuplicatePlans   []string          `json:"duplicate_plans"`
	DuplicateReports []string          `json:"duplicate_reports"`
	IncludeUnmatched bool              `json:"include_unmatched"`
	TokenUsage       common.TokenUsage `json:"token_usage"`
	DurationMS       int64             `json:"duration_ms"`
}

// BatchResult is what the upload endpoint returns.
type BatchResult struct {
	Summary BatchSummary `json:"summary"`
	Results []PairResult `json:"results"`
}

// ProcessBatch pairs the uploads and evaluates every pair concurrently, each
// pair admitted through the shared limiter. It returns after every pair has
// finished. Cancelling ctx does not abort accepted work.
func (a *Analyzer) ProcessBatch(ctx context.Context, rc *common.RequestContext, plans, reports []processor.UploadedFile, opts Options) *BatchResult {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	step := rc.StartStep("pair_files")
	pairing := BuildPairs(plans, reports, opts.IncludeUnmatched)
	step.End(fmt.Sprintf("%d pairs", len(pairing.Pairs)), nil, nil)

	for _, name := range pairing.DuplicatePlans {
		rc.LogWarning("Duplicate plan key, keeping the first file and skipping %s", name)
	}
	for _, name := range pairing.DuplicateReports {
		rc.LogWarning("Duplicate report key, keeping the first file and skipping %s", name)
	}

	results := make([]PairResult, len(pairing.Pairs))
	var g errgroup.Group
	for i, pair := range pairing.Pairs {
		i, pair := i, pair
		g.Go(func() error {
			results[i] = a.processPair(ctx, rc.WithPair(pair.Key), pair)
			return nil
		})
	}
	_ = g.Wait()

	summary := BatchSummary{
		TotalPlanFiles:   len(plans),
		TotalReportFiles: len(reports),
		MatchedCount:     pairing.MatchedCount,
		ProcessedCount:   len(results),
		UnmatchedPlans:   pairing.UnmatchedPlans,
		UnmatchedReports: pairing.UnmatchedReports,
		DuplicatePlans:   pairing.DuplicatePlans,
		DuplicateReports: pairing.DuplicateReports,
		IncludeUnmatched: opts.IncludeUnmatched,
		TokenUsage:       rc.TotalTokens(),
		DurationMS:       time.Since(start).Milliseconds(),
	}
	for _, r := range results {
		if r.Status == StatusSuccess {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
		}
	}

	rc.LogInfo("Batch finished: %d processed, %d success, %d error", summary.ProcessedCount, summary.SuccessCount, summary.ErrorCount)
	return &BatchResult{Summary: summary, Results: results}
}

func (a *Analyzer) processPair(ctx context.Context, rc *common.RequestContext, pair Pair) PairResult {
	var result PairResult
	err := a.limiter.Do(ctx, func() error {
		result = a.runPipeline(ctx, rc, pair)
		return nil
	})
	if err != nil {
		result = failure(pair, fmt.Errorf("rate limiter admission: %w", err), CategoryAdmission)
	}
	return result
}

// runPipeline is one pair's extract, assemble, evaluate, parse and persist.
func (a *Analyzer) runPipeline(ctx context.Context, rc *common.RequestContext, pair Pair) PairResult {
	rc.LogInfo("Pair processing started")

	var planText, reportText string
	var images []processor.EmbeddedImage

	step := rc.StartStep("extract_content")
	if pair.Plan != nil {
		text, err := processor.ExtractText(*pair.Plan)
		if err != nil {
			step.End("failed", nil, err)
			return failure(pair, err, CategoryExtraction)
		}
		planText = text
	}
	if pair.Report != nil {
		text, err := processor.ExtractText(*pair.Report)
		if err != nil {
			step.End("failed", nil, err)
			return failure(pair, err, CategoryExtraction)
		}
		reportText = text
		if pair.Report.IsSpreadsheet() {
			images = processor.ExtractImages(pair.Report.Data)
		}
	}
	step.End(fmt.Sprintf("%d chars, %d photos", len([]rune(planText))+len([]rune(reportText)), len(images)), nil, nil)

	prompt, err := processor.AssemblePrompt(planText, reportText, images)
	if err != nil {
		return failure(pair, err, CategoryEmpty)
	}
	if prompt.Truncated {
		rc.LogWarning("Combined content exceeded %d chars, middle elided", processor.MaxPromptChars)
	}

	input := ai.EvaluationInput{Text: prompt.Text}
	step = rc.StartStep("normalize_images")
	for _, img := range prompt.Images {
		data, err := processor.NormalizeImage(img.Image, a.maxImgDim)
		if err != nil {
			rc.LogWarning("Skipping photo %s: %v", img.Name, err)
			continue
		}
		input.Images = append(input.Images, data)
	}
	input.Evidence = processor.PhotoEvidence(prompt.DetectedImages, len(input.Images))
	step.End(fmt.Sprintf("%d/%d attached", len(input.Images), prompt.DetectedImages), nil, nil)

	result := PairResult{
		Key:            pair.Key,
		Filename:       pair.Target().Name,
		PhotoCount:     prompt.DetectedImages,
		PhotosAttached: len(input.Images),
		Truncated:      prompt.Truncated,
	}

	step = rc.StartStep("evaluate")
	gen, err := a.evaluator.Evaluate(ctx, a.prompt, input)
	if err != nil {
		category := ai.CategorizeError(err)
		step.End("failed", nil, category)
		result.Status = StatusError
		result.Error = err.Error()
		result.ErrorCategory = category.Category
		return result
	}
	step.End("success", &gen.Usage, nil)
	result.Tokens = &gen.Usage
	if gen.Truncated {
		rc.LogWarning("Model output hit the token limit; response may be incomplete")
	}

	a.archiveResponse(ctx, rc, pair, gen)

	step = rc.StartStep("parse_response")
	ev, err := ai.ParseEvaluation(gen.Text)
	if err != nil {
		step.End("failed", nil, err)
		result.Status = StatusError
		result.Error = fmt.Sprintf("failed to parse model response: %v", err)
		result.ErrorCategory = CategoryParse
		result.AnalysisResult = gen.Text
		return result
	}
	ev.Set(ai.FieldPhotoCountDetected, prompt.DetectedImages)
	ev.Set(ai.FieldPhotosAttached, len(input.Images))
	step.End("success", nil, nil)

	result.Status = StatusSuccess
	result.AnalysisResult = ev.Data
	total := ev.Total
	result.TotalScore = &total

	step = rc.StartStep("save_result")
	rec, err := buildRecord(pair, ev, prompt.DetectedImages)
	if err == nil {
		err = a.store.Save(ctx, rec)
	}
	if err != nil {
		step.End("failed", nil, err)
		result.StorageError = err.Error()
		return result
	}
	step.End("success", nil, nil)
	id := rec.ID
	result.RecordID = &id
	return result
}

func (a *Analyzer) archiveResponse(ctx context.Context, rc *common.RequestContext, pair Pair, gen *ai.Generation) {
	err := a.archive.Archive(ctx, storage.RawResponse{
		RequestID:    rc.RequestID,
		PairKey:      pair.Key,
		Filename:     pair.Target().Name,
		Model:        gen.Model,
		Response:     gen.Text,
		Truncated:    gen.Truncated,
		InputTokens:  gen.Usage.InputTokens,
		OutputTokens: gen.Usage.OutputTokens,
	})
	if err != nil {
		rc.LogWarning("Raw response archive failed: %v", err)
	}
}

// buildRecord names the record after the target file without extension and
// takes campus, class and author from the same name.
func buildRecord(pair Pair, ev *ai.Evaluation, detectedPhotos int) (*storage.AnalysisRecord, error) {
	target := pair.Target()
	data, err := ev.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode evaluation: %w", err)
	}

	info := processor.ParseFilenameInfo(target.Name)
	return &storage.AnalysisRecord{
		Filename:     strings.TrimSuffix(target.Name, filepath.Ext(target.Name)),
		TotalScore:   ev.Total,
		PhotoCount:   detectedPhotos,
		AnalysisJSON: datatypes.JSON(data),
		Campus:       info.Campus,
		ClassName:    info.ClassName,
		AuthorName:   info.AuthorName,
	}, nil
}

func failure(pair Pair, err error, category string) PairResult {
	name := ""
	if t := pair.Target(); t != nil {
		name = t.Name
	}
	if errors.Is(err, processor.ErrEmptyContent) {
		category = CategoryEmpty
	}
	return PairResult{
		Key:           pair.Key,
		Filename:      name,
		Status:        StatusError,
		Error:         err.Error(),
		ErrorCategory: category,
	}
}
