package pipeline

import (
	"reflect"
	"testing"

	"github.com/studyhub/study_eval_gemini/internal/processor"
)

func files(names ...string) []processor.UploadedFile {
	out := make([]processor.UploadedFile, len(names))
	for i, n := range names {
		out[i] = processor.UploadedFile{Name: n, Data: []byte(n)}
	}
	return out
}

func TestBuildPairsMatchedOnly(t *testing.T) {
	p := BuildPairs(
		files("plan_서울_1반_홍길동.xlsx", "plan_대전_2반_김철수.xlsx"),
		files("report_서울_1반_홍길동.xlsx"),
		false,
	)

	if p.MatchedCount != 1 || len(p.Pairs) != 1 {
		t.Fatalf("matched=%d pairs=%d", p.MatchedCount, len(p.Pairs))
	}
	if p.Pairs[0].Key != "서울_1반_홍길동" || p.Pairs[0].Plan == nil || p.Pairs[0].Report == nil {
		t.Fatalf("unexpected pair: %+v", p.Pairs[0])
	}
	if !reflect.DeepEqual(p.UnmatchedPlans, []string{"plan_대전_2반_김철수.xlsx"}) {
		t.Fatalf("unmatched plans = %v", p.UnmatchedPlans)
	}
	if len(p.UnmatchedReports) != 0 {
		t.Fatalf("unmatched reports = %v", p.UnmatchedReports)
	}
}

func TestBuildPairsIncludeUnmatched(t *testing.T) {
	p := BuildPairs(
		files("plan_서울_1반_홍길동.xlsx", "plan_대전_2반_김철수.xlsx"),
		files("report_광주_3반_이영희.xlsx", "report_서울_1반_홍길동.xlsx"),
		true,
	)

	var keys []string
	for _, pair := range p.Pairs {
		keys = append(keys, pair.Key)
	}
	want := []string{"서울_1반_홍길동", "대전_2반_김철수", "광주_3반_이영희"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("pair order = %v, want %v", keys, want)
	}
	if p.MatchedCount != 1 {
		t.Fatalf("matched = %d", p.MatchedCount)
	}
	if p.Pairs[1].Report != nil || p.Pairs[2].Plan != nil {
		t.Fatal("one-sided pairs must leave the other side nil")
	}
	if p.Pairs[1].Target().Name != "plan_대전_2반_김철수.xlsx" {
		t.Fatalf("plan-only target = %s", p.Pairs[1].Target().Name)
	}
}

func TestBuildPairsDuplicatesFirstWins(t *testing.T) {
	p := BuildPairs(
		files("v1_서울_1반_홍길동.xlsx", "v2_서울_1반_홍길동.xlsx"),
		files("report_서울_1반_홍길동.xlsx"),
		false,
	)

	if p.Pairs[0].Plan.Name != "v1_서울_1반_홍길동.xlsx" {
		t.Fatalf("first file must win, got %s", p.Pairs[0].Plan.Name)
	}
	if !reflect.DeepEqual(p.DuplicatePlans, []string{"v2_서울_1반_홍길동.xlsx"}) {
		t.Fatalf("duplicates = %v", p.DuplicatePlans)
	}
}

func TestBuildPairsKeylessFilesAreUnmatched(t *testing.T) {
	p := BuildPairs(files("plan.xlsx"), files("홍길동_보고서.xlsx"), true)
	if len(p.Pairs) != 0 {
		t.Fatalf("keyless files must not be processed, got %d pairs", len(p.Pairs))
	}
	if len(p.UnmatchedPlans) != 1 || len(p.UnmatchedReports) != 1 {
		t.Fatalf("unmatched = %v / %v", p.UnmatchedPlans, p.UnmatchedReports)
	}
}
