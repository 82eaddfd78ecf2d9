package benchmark

import (
	"context"
	"math"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// Record is one historical score. Several records per zone may exist; the
// best one wins.
type Record struct {
	ID         uint      `gorm:"primaryKey"`
	Zone       string    `gorm:"index;not null"`
	Algorithm  string    `gorm:"size:64"`
	R2         float64   `gorm:"column:r2"`
	RecordedAt time.Time `gorm:"index"`
}

// TableName pins the table name.
func (Record) TableName() string { return "benchmark_history" }

// SQLProvider reads benchmark records through gorm.
type SQLProvider struct {
	DB *gorm.DB
}

// OpenSQL connects with driver "sqlite" or "postgres" and migrates the
// benchmark table.
func OpenSQL(driver, dsn string) (*SQLProvider, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.NewValidationError("benchmark.driver", "must be sqlite or postgres", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errors.NewConnectivityError(driver, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.NewConnectivityError(driver, err)
	}
	return &SQLProvider{DB: db}, nil
}

// Load returns the best R² per zone. Non-finite and empty-zone records are
// skipped with a warning.
func (p *SQLProvider) Load(ctx context.Context) (History, error) {
	var records []Record
	if err := p.DB.WithContext(ctx).Order("zone, recorded_at").Find(&records).Error; err != nil {
		return nil, errors.NewConnectivityError("benchmark_history", err)
	}
	lg := log.GetLoggerWithName("benchmark")
	h := History{}
	for _, r := range records {
		if r.Zone == "" || math.IsNaN(r.R2) || math.IsInf(r.R2, 0) {
			lg.Warn("Invalid benchmark record skipped", "id", r.ID, "zone", r.Zone)
			continue
		}
		if best, ok := h[r.Zone]; !ok || r.R2 > best {
			h[r.Zone] = r.R2
		}
	}
	return h, nil
}

// Close releases the connection pool.
func (p *SQLProvider) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Save appends a record, e.g. the R² of a run's final model.
func (p *SQLProvider) Save(ctx context.Context, r Record) error {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}
	if err := p.DB.WithContext(ctx).Create(&r).Error; err != nil {
		return errors.NewConnectivityError("benchmark_history", err)
	}
	return nil
}
