// Package testhistory persists a row per executed `test` block so `tea
// test --history` can report pass/fail trends across invocations. Modeled
// on the teacher's gorm-backed User/Task models (examples/main.go): a
// uuid-keyed row, a BeforeCreate hook filling that id, and sqlite as the
// backing store.
package testhistory

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/jinzhu/now"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TestRun is one recorded outcome of a `test "..." ... end` block.
type TestRun struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	TestName     string    `json:"testName"`
	FilePath     string    `json:"filePath"`
	Line         int       `json:"line"`
	Passed       bool      `json:"passed"`
	Message      string    `json:"message"`
	DurationMS   int64     `json:"durationMs"`
	SnapshotPath string    `json:"snapshotPath"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BeforeCreate fills ID before inserting, mirroring the teacher's
// User.BeforeCreate/Task.BeforeCreate hooks.
func (r *TestRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

func generateUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Store wraps the sqlite-backed history database.
type Store struct {
	db *gorm.DB
}

// Open creates or attaches to the sqlite file at path and migrates the
// TestRun schema, matching the teacher's `gorm.Open(sqlite.Open(url), ...)`
// + `db.AutoMigrate(...)` startup sequence.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening test history database: %w", err)
	}
	if err := db.AutoMigrate(&TestRun{}); err != nil {
		return nil, fmt.Errorf("migrating test history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts one TestRun row.
func (s *Store) Record(run TestRun) error {
	return s.db.Create(&run).Error
}

// Recent returns the most recent limit runs, newest first.
func (s *Store) Recent(limit int) ([]TestRun, error) {
	var runs []TestRun
	err := s.db.Order("created_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// DaySummary is one day's aggregate pass/fail counts.
type DaySummary struct {
	Day    time.Time
	Passed int
	Failed int
}

// History buckets the most recent limit runs by calendar day using
// now.BeginningOfDay, newest day first.
func (s *Store) History(limit int) ([]DaySummary, error) {
	runs, err := s.Recent(limit)
	if err != nil {
		return nil, err
	}

	order := make([]time.Time, 0)
	byDay := map[time.Time]*DaySummary{}
	for _, r := range runs {
		day := now.New(r.CreatedAt).BeginningOfDay()
		summary, ok := byDay[day]
		if !ok {
			summary = &DaySummary{Day: day}
			byDay[day] = summary
			order = append(order, day)
		}
		if r.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	result := make([]DaySummary, len(order))
	for i, day := range order {
		result[i] = *byDay[day]
	}
	return result, nil
}
