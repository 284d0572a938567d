package storage

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisRecord is one persisted evaluation. Rows are inserted once and never
// updated by this service.
type AnalysisRecord struct {
	ID           int64          `gorm:"column:id;primaryKey;autoIncrement;size:32" json:"id"`
	Filename     string         `gorm:"column:filename;type:text;not null" json:"filename"`
	TotalScore   int            `gorm:"column:total_score" json:"total_score"`
	PhotoCount   int            `gorm:"column:photo_count" json:"photo_count"`
	AnalysisJSON datatypes.JSON `gorm:"column:analysis_json;type:jsonb" json:"-"`
	Campus       *string        `gorm:"column:campus;type:text" json:"campus"`
	ClassName    *string        `gorm:"column:class_name;type:text" json:"class_name"`
	AuthorName   *string        `gorm:"column:author_name;type:text" json:"author_name"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null;default:now();index" json:"created_at"`
}

// TableName pins the table name shared with earlier deployments.
func (AnalysisRecord) TableName() string {
	return "analysis_results"
}

// ResultSummary is a row of the results listing.
type ResultSummary struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	TotalScore int       `json:"total_score"`
	PhotoCount int       `json:"photo_count"`
	Campus     *string   `json:"campus"`
	ClassName  *string   `json:"class_name"`
	AuthorName *string   `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResultDetail is a stored record with its evaluation decoded. When the stored
// JSON cannot be decoded AnalysisData carries an "error" entry instead.
type ResultDetail struct {
	ResultSummary
	AnalysisData interface{} `json:"analysis_data"`
}

// FilterOptions are the distinct non-null campus and class values, sorted.
type FilterOptions struct {
	Campuses   []string `json:"campuses"`
	ClassNames []string `json:"class_names"`
}
