package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestParseResultFilter(t *testing.T) {
	f, err := ParseResultFilter(" 서울 ", "1반", "2025-03-01", "2025-03-31", " 홍 ")
	if err != nil {
		t.Fatalf("ParseResultFilter: %v", err)
	}
	if f.Campus != "서울" || f.ClassName != "1반" || f.Query != "홍" {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if got := f.From.Format(FilterDateLayout); got != "2025-03-01" {
		t.Fatalf("from = %s", got)
	}
	// end date is inclusive: the bound is the start of the next day
	if got := f.Until.Format(FilterDateLayout); got != "2025-04-01" {
		t.Fatalf("until = %s", got)
	}

	empty, err := ParseResultFilter("", "", "", "", "")
	if err != nil || empty.From != nil || empty.Until != nil {
		t.Fatalf("empty filter: %+v, %v", empty, err)
	}

	for _, bad := range [][2]string{{"2025/03/01", ""}, {"", "31-03-2025"}, {"2025-02-30", ""}} {
		if _, err := ParseResultFilter("", "", bad[0], bad[1], ""); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("dates %v: expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	if got := likePattern(`50%_a\b`); got != `%50\%\_a\\b%` {
		t.Fatalf("got %s", got)
	}
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=test dbname=test sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func TestListQueryBuildsFilters(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)
	until := from.AddDate(0, 0, 31)

	var rows []ResultSummary
	stmt := listQuery(dryRunDB(t), ResultFilter{
		Campus:    "서울",
		ClassName: "1반",
		From:      &from,
		Until:     &until,
		Query:     "홍",
	}).Find(&rows).Statement

	sql := stmt.SQL.String()
	for _, want := range []string{
		`FROM "analysis_results"`,
		"campus = $1",
		"class_name = $2",
		"created_at >= $3",
		"created_at < $4",
		"(author_name ILIKE $5 OR filename ILIKE $6)",
		"ORDER BY created_at DESC",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("query %q missing %q", sql, want)
		}
	}
	if strings.Contains(sql, "analysis_json") {
		t.Fatalf("listing must not select analysis_json: %s", sql)
	}
	if len(stmt.Vars) != 6 || stmt.Vars[4] != "%홍%" {
		t.Fatalf("unexpected vars: %v", stmt.Vars)
	}
}

func TestListQueryWithoutFilters(t *testing.T) {
	var rows []ResultSummary
	sql := listQuery(dryRunDB(t), ResultFilter{}).Find(&rows).Statement.SQL.String()
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("unexpected WHERE clause: %s", sql)
	}
}

func TestToDetailDecodesJSON(t *testing.T) {
	campus := "서울"
	d := toDetail(AnalysisRecord{ID: 7, Filename: "report_서울_1반_홍길동", Campus: &campus,
		AnalysisJSON: datatypes.JSON(`{"total": 42}`)})
	data, ok := d.AnalysisData.(map[string]interface{})
	if !ok || data["total"] != float64(42) || d.ID != 7 || *d.Campus != "서울" {
		t.Fatalf("unexpected detail: %+v", d)
	}

	broken := toDetail(AnalysisRecord{AnalysisJSON: datatypes.JSON(`{not json`)})
	if m, ok := broken.AnalysisData.(map[string]string); !ok || m["error"] == "" {
		t.Fatalf("expected error payload, got %#v", broken.AnalysisData)
	}
}

func TestSaveRejectsInvalidJSON(t *testing.T) {
	store := NewPostgresStore(dryRunDB(t), logrus.New(), nil)
	err := store.Save(context.Background(), &AnalysisRecord{Filename: "x", AnalysisJSON: datatypes.JSON("{")})
	if !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON, got %v", err)
	}
}

// TestPostgresStoreIntegration runs against a real database when
// TEST_DATABASE_DSN is set.
func TestPostgresStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	store, err := OpenPostgres(ctx, dsn, true, log)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer store.Close()

	campus, class, author := "대전", "9반", "통합테스트"
	rec := &AnalysisRecord{
		Filename:     "report_대전_9반_통합테스트",
		TotalScore:   42,
		PhotoCount:   2,
		AnalysisJSON: datatypes.JSON(`{"total": 42, "photo_count_detected": 2}`),
		Campus:       &campus,
		ClassName:    &class,
		AuthorName:   &author,
	}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	defer store.db.Delete(&AnalysisRecord{}, rec.ID)

	if rec.ID == 0 {
		t.Fatal("expected generated id")
	}

	today := time.Now().Format(FilterDateLayout)
	f, _ := ParseResultFilter(campus, class, today, today, "통합")
	rows, err := store.List(ctx, f)
	if err != nil || len(rows) == 0 || rows[0].ID != rec.ID {
		t.Fatalf("List: %+v, %v", rows, err)
	}

	opts, err := store.FilterOptions(ctx)
	if err != nil {
		t.Fatalf("FilterOptions: %v", err)
	}
	found := false
	for _, c := range opts.Campuses {
		found = found || c == campus
	}
	if !found {
		t.Fatalf("campus %s missing from %v", campus, opts.Campuses)
	}

	detail, err := store.Get(ctx, rec.ID)
	if err != nil || detail.TotalScore != 42 {
		t.Fatalf("Get: %+v, %v", detail, err)
	}
	if _, err := store.Get(ctx, -1); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
