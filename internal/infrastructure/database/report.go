package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// ClassSummary is one row of the roster report.
type ClassSummary struct {
	ClassID        string   `db:"class_id" json:"class_id"`
	Name           string   `db:"name" json:"name"`
	Row            int      `db:"grid_row" json:"row"`
	Column         int      `db:"grid_column" json:"column"`
	ActiveStudents int      `db:"active_students" json:"active_students"`
	ActiveRatings  int      `db:"active_ratings" json:"active_ratings"`
	AverageRating  *float64 `db:"average_rating" json:"average_rating,omitempty"`
}

const classSummaryQuery = `
SELECT c.id AS class_id,
       c.name,
       c.grid_row,
       c.grid_column,
       (SELECT COUNT(*) FROM students s
         WHERE s.class_id = c.id AND NOT s.is_archived) AS active_students,
       (SELECT COUNT(*) FROM ratings r
         WHERE r.class_id = c.id AND NOT r.is_archived) AS active_ratings,
       (SELECT AVG(r.value)::float8 FROM ratings r
         WHERE r.class_id = c.id AND NOT r.is_archived AND r.value IS NOT NULL) AS average_rating
  FROM classes c
 WHERE NOT c.is_archived
 ORDER BY c.grid_row, c.grid_column`

// RosterReport runs read-only summary queries against the engine's
// database, bypassing the ORM.
type RosterReport struct {
	db *sqlx.DB
}

// NewRosterReport shares the connection pool of an open gorm connection.
func NewRosterReport(db *gorm.DB) (*RosterReport, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return &RosterReport{db: sqlx.NewDb(sqlDB, "postgres")}, nil
}

// ClassSummaries returns per-class counts for every active class.
func (r *RosterReport) ClassSummaries(ctx context.Context) ([]ClassSummary, error) {
	var rows []ClassSummary
	if err := r.db.SelectContext(ctx, &rows, classSummaryQuery); err != nil {
		return nil, fmt.Errorf("failed to query class summaries: %w", err)
	}
	return rows, nil
}

// StudentsInSchoolYear counts distinct students rated in a school year.
func (r *RosterReport) StudentsInSchoolYear(ctx context.Context, schoolYear string) (int, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(DISTINCT student_id) FROM ratings WHERE school_year = ?`)
	if err := r.db.GetContext(ctx, &n, query, schoolYear); err != nil {
		return 0, fmt.Errorf("failed to count students for %s: %w", schoolYear, err)
	}
	return n, nil
}
