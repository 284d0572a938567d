package pipeline

import (
	"github.com/studyhub/study_eval_gemini/internal/processor"
)

// Pair is one unit of work. At most one side is nil, and only when unmatched
// files are being processed.
type Pair struct {
	Key    string
	Plan   *processor.UploadedFile
	Report *processor.UploadedFile
}

// Target is the file a result is named after: the report when present.
func (p Pair) Target() *processor.UploadedFile {
	if p.Report != nil {
		return p.Report
	}
	return p.Plan
}

// Pairing is the outcome of keying a batch of uploads.
type Pairing struct {
	Pairs []Pair
	// MatchedCount counts keys present on both sides.
	MatchedCount int
	// UnmatchedPlans / UnmatchedReports list files with no key or no partner.
	UnmatchedPlans   []string
	UnmatchedReports []string
	// DuplicatePlans / DuplicateReports list files whose key was already taken.
	DuplicatePlans   []string
	DuplicateReports []string
}

type keyedFiles struct {
	order      []string
	byKey      map[string]*processor.UploadedFile
	keyless    []string
	duplicates []string
}

// keyFiles maps files by MatchKey; the first file with a key wins.
func keyFiles(files []processor.UploadedFile) keyedFiles {
	kf := keyedFiles{byKey: make(map[string]*processor.UploadedFile, len(files))}
	for i := range files {
		f := &files[i]
		key, ok := processor.MatchKey(f.Name)
		if !ok {
			kf.keyless = append(kf.keyless, f.Name)
			continue
		}
		if _, taken := kf.byKey[key]; taken {
			kf.duplicates = append(kf.duplicates, f.Name)
			continue
		}
		kf.byKey[key] = f
		kf.order = append(kf.order, key)
	}
	return kf
}

// BuildPairs joins plans and reports on MatchKey. Pairs come out in order of
// first appearance, plans first. Only keys on both sides become pairs unless
// includeUnmatched is set, in which case every key does.
func BuildPairs(plans, reports []processor.UploadedFile, includeUnmatched bool) Pairing {
	p := keyFiles(plans)
	r := keyFiles(reports)

	out := Pairing{
		UnmatchedPlans:   append([]string{}, p.keyless...),
		UnmatchedReports: append([]string{}, r.keyless...),
		DuplicatePlans:   append([]string{}, p.duplicates...),
		DuplicateReports: append([]string{}, r.duplicates...),
	}

	for _, key := range p.order {
		report, ok := r.byKey[key]
		if ok {
			out.MatchedCount++
			out.Pairs = append(out.Pairs, Pair{Key: key, Plan: p.byKey[key], Report: report})
			continue
		}
		out.UnmatchedPlans = append(out.UnmatchedPlans, p.byKey[key].Name)
		if includeUnmatched {
			out.Pairs = append(out.Pairs, Pair{Key: key, Plan: p.byKey[key]})
		}
	}

	for _, key := range r.order {
		if _, ok := p.byKey[key]; ok {
			continue
		}
		out.UnmatchedReports = append(out.UnmatchedReports, r.byKey[key].Name)
		if includeUnmatched {
			out.Pairs = append(out.Pairs, Pair{Key: key, Report: r.byKey[key]})
		}
	}

	return out
}
