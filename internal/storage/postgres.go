// postgres.go - Result store backed by PostgreSQL through gorm

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrRecordNotFound is returned by Get for an unknown id.
	ErrRecordNotFound = errors.New("analysis result not found")
	// ErrInvalidJSON is returned by Save when analysis_json is not valid JSON.
	ErrInvalidJSON = errors.New("analysis_json is not valid JSON")
)

// detailDecodeError is served in place of analysis data that fails to decode.
const detailDecodeError = "저장된 JSON 데이터 파싱 실패"

// addedColumns are columns introduced after the first schema; they are added
// to existing tables on startup.
var addedColumns = []string{"Campus", "ClassName", "AuthorName"}

// PostgresStore persists evaluations. Every call autocommits on its own.
type PostgresStore struct {
	db     *gorm.DB
	logger *logrus.Logger
	cache  *FilterOptionsCache
}

// OpenPostgres connects to dsn, creating the database first when it is
// missing and autoCreate is set, then brings the schema up to date.
func OpenPostgres(ctx context.Context, dsn string, autoCreate bool, log *logrus.Logger) (*PostgresStore, error) {
	gormConfig := &gorm.Config{Logger: NewGormLogger(log)}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil && autoCreate && isMissingDatabase(err) {
		log.Info("Target database does not exist, creating it")
		if e := ensureDatabaseExists(ctx, dsn); e != nil {
			return nil, fmt.Errorf("failed to create database: %w", e)
		}
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	store := NewPostgresStore(db, log, NewFilterOptionsCache(DefaultFilterOptionsTTL))
	if err := store.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Info("✅ Connected to PostgreSQL, analysis_results schema is up to date")
	return store, nil
}

// NewPostgresStore wraps an open gorm handle without touching the schema.
func NewPostgresStore(db *gorm.DB, log *logrus.Logger, cache *FilterOptionsCache) *PostgresStore {
	if cache == nil {
		cache = NewFilterOptionsCache(DefaultFilterOptionsTTL)
	}
	return &PostgresStore{db: db, logger: log, cache: cache}
}

// NewGormLogger routes gorm's SQL logging through logrus.
func NewGormLogger(log *logrus.Logger) logger.Interface {
	level := logger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = logger.Info
	}
	return logger.New(log, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// Migrate creates analysis_results when absent and adds any columns that
// older tables lack. Existing rows are never rewritten.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	m := s.db.WithContext(ctx).Migrator()

	if !m.HasTable(&AnalysisRecord{}) {
		if err := m.CreateTable(&AnalysisRecord{}); err != nil {
			return fmt.Errorf("create analysis_results: %w", err)
		}
		s.logger.Info("Created table analysis_results")
		return nil
	}

	for _, field := range addedColumns {
		if m.HasColumn(&AnalysisRecord{}, field) {
			continue
		}
		if err := m.AddColumn(&AnalysisRecord{}, field); err != nil {
			return fmt.Errorf("add column %s: %w", field, err)
		}
		s.logger.WithField("column", field).Info("Schema change: column added to analysis_results")
	}
	return nil
}

// Save inserts rec and sets its ID and CreatedAt.
func (s *PostgresStore) Save(ctx context.Context, rec *AnalysisRecord) error {
	if !json.Valid(rec.AnalysisJSON) {
		return ErrInvalidJSON
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert analysis result %q: %w", rec.Filename, err)
	}
	s.cache.Invalidate()
	return nil
}

// List returns matching results, newest first.
func (s *PostgresStore) List(ctx context.Context, f ResultFilter) ([]ResultSummary, error) {
	rows := make([]ResultSummary, 0)
	if err := listQuery(s.db.WithContext(ctx), f).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list analysis results: %w", err)
	}
	return rows, nil
}

func listQuery(db *gorm.DB, f ResultFilter) *gorm.DB {
	q := db.Model(&AnalysisRecord{}).
		Select("id", "filename", "total_score", "photo_count", "campus", "class_name", "author_name", "created_at")

	if f.Campus != "" {
		q = q.Where("campus = ?", f.Campus)
	}
	if f.ClassName != "" {
		q = q.Where("class_name = ?", f.ClassName)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.Until != nil {
		q = q.Where("created_at < ?", *f.Until)
	}
	if f.Query != "" {
		pattern := likePattern(f.Query)
		q = q.Where("author_name ILIKE ? OR filename ILIKE ?", pattern, pattern)
	}
	return q.Order("created_at DESC")
}

// FilterOptions returns the dropdown values, served from cache when fresh.
func (s *PostgresStore) FilterOptions(ctx context.Context) (FilterOptions, error) {
	return s.cache.GetOrLoad(ctx, s.loadFilterOptions)
}

func (s *PostgresStore) loadFilterOptions(ctx context.Context) (FilterOptions, error) {
	opts := FilterOptions{Campuses: []string{}, ClassNames: []string{}}
	db := s.db.WithContext(ctx).Model(&AnalysisRecord{})

	if err := db.Distinct("campus").Where("campus IS NOT NULL").Order("campus").Pluck("campus", &opts.Campuses).Error; err != nil {
		return FilterOptions{}, fmt.Errorf("load campus options: %w", err)
	}
	db = s.db.WithContext(ctx).Model(&AnalysisRecord{})
	if err := db.Distinct("class_name").Where("class_name IS NOT NULL").Order("class_name").Pluck("class_name", &opts.ClassNames).Error; err != nil {
		return FilterOptions{}, fmt.Errorf("load class options: %w", err)
	}
	return opts, nil
}

// Get returns one record with its analysis decoded.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*ResultDetail, error) {
	var rec AnalysisRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis result %d: %w", id, err)
	}
	return toDetail(rec), nil
}

func toDetail(rec AnalysisRecord) *ResultDetail {
	detail := &ResultDetail{
		ResultSummary: ResultSummary{
			ID:         rec.ID,
			Filename:   rec.Filename,
			TotalScore: rec.TotalScore,
			PhotoCount: rec.PhotoCount,
			Campus:     rec.Campus,
			ClassName:  rec.ClassName,
			AuthorName: rec.AuthorName,
			CreatedAt:  rec.CreatedAt,
		},
	}

	var data interface{}
	if err := json.Unmarshal(rec.AnalysisJSON, &data); err != nil {
		detail.AnalysisData = map[string]string{"error": detailDecodeError}
	} else {
		detail.AnalysisData = data
	}
	return detail
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isMissingDatabase(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "3D000")
}

// ensureDatabaseExists connects to the postgres maintenance database and
// creates the target database when it is absent. dsn must be URL-shaped.
func ensureDatabaseExists(ctx context.Context, dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return err
	}
	dbname := strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
	if dbname == "" || dbname == "postgres" {
		return nil
	}
	u.Path = "/postgres"

	db, err := sql.Open("pgx", u.String())
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.QueryRowContext(ctx, "SELECT 1 FROM pg_database WHERE datname = $1", dbname).Scan(new(int))
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.ExecContext(ctx, `CREATE DATABASE "`+strings.ReplaceAll(dbname, `"`, `""`)+`"`)
	}
	return err
}
