package repository

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/sublinear-mpc/matching/internal/metrics"
	"github.com/sublinear-mpc/matching/pkg/errors"
)

// RunRepository persists a completed run's metrics for later comparison.
type RunRepository interface {
	// SaveRun stores m as a new row, returning the assigned run ID.
	SaveRun(ctx context.Context, m metrics.RunMetrics) (int64, error)

	// GetRun retrieves a previously saved run and its phase records by ID.
	GetRun(ctx context.Context, id int64) (metrics.RunMetrics, error)

	// RecentRuns returns up to limit of the most recently saved runs,
	// newest first, without their phase records.
	RecentRuns(ctx context.Context, limit int) ([]metrics.RunMetrics, error)
}

// GormRunRepository implements RunRepository using GORM.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository wraps an already-opened, already-migrated db.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// SaveRun inserts the run row and its phase rows in a single transaction;
// a failure here is logged by the caller and must not fail the run.
func (r *GormRunRepository) SaveRun(ctx context.Context, m metrics.RunMetrics) (int64, error) {
	run := RunRow{
		S:                 m.Run.S,
		R:                 m.Run.R,
		N:                 m.Run.N,
		P:                 m.Run.P,
		TotalMatchingSize: m.Run.TotalMatchingSize,
		TotalPhases:       m.Run.TotalPhases,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(m.Phases) == 0 {
			return nil
		}
		rows := make([]PhaseRow, len(m.Phases))
		for i, ph := range m.Phases {
			rows[i] = PhaseRow{
				RunID:            run.ID,
				PhaseIdx:         ph.PhaseIdx,
				ActiveEdges:      ph.ActiveEdges,
				MatchingSizeNew:  ph.MatchingSizeNew,
				P:                ph.P,
				DegStats:         marshalJSONField(ph.Deg),
				StallRate:        ph.StallRate,
				BallStats:        marshalJSONField(ph.Ball),
				MISSelectionRate: ph.MISSelectionRate,
				MaxCommBytes:     ph.MaxCommBytes,
				MaxCommItems:     ph.MaxCommItems,
				WallMicros:       ph.WallMicros,
			}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, errors.Wrap(errors.CodeRepositoryError, "saving run metrics", err)
	}
	return run.ID, nil
}

// GetRun retrieves run id along with its phase rows, ordered by phase
// index.
func (r *GormRunRepository) GetRun(ctx context.Context, id int64) (metrics.RunMetrics, error) {
	var run RunRow
	if err := r.db.WithContext(ctx).First(&run, id).Error; err != nil {
		return metrics.RunMetrics{}, errors.Wrap(errors.CodeRepositoryError, "loading run", err)
	}

	var rows []PhaseRow
	if err := r.db.WithContext(ctx).Where("run_id = ?", id).Order("phase_idx asc").Find(&rows).Error; err != nil {
		return metrics.RunMetrics{}, errors.Wrap(errors.CodeRepositoryError, "loading run phases", err)
	}

	phases := make([]metrics.PhaseRecord, len(rows))
	for i, row := range rows {
		var deg metrics.DegStats
		var ball metrics.BallStats
		_ = unmarshalJSONField(row.DegStats, &deg)
		_ = unmarshalJSONField(row.BallStats, &ball)
		phases[i] = metrics.PhaseRecord{
			PhaseIdx:         row.PhaseIdx,
			ActiveEdges:      row.ActiveEdges,
			MatchingSizeNew:  row.MatchingSizeNew,
			P:                row.P,
			Deg:              deg,
			StallRate:        row.StallRate,
			Ball:             ball,
			MISSelectionRate: row.MISSelectionRate,
			MaxCommBytes:     row.MaxCommBytes,
			MaxCommItems:     row.MaxCommItems,
			WallMicros:       row.WallMicros,
		}
	}

	return metrics.RunMetrics{
		Run: metrics.RunRecord{
			S:                 run.S,
			R:                 run.R,
			N:                 run.N,
			P:                 run.P,
			TotalMatchingSize: run.TotalMatchingSize,
			TotalPhases:       run.TotalPhases,
		},
		Phases: phases,
	}, nil
}

// RecentRuns returns the most recently created runs without their phase
// records, for a lightweight history listing.
func (r *GormRunRepository) RecentRuns(ctx context.Context, limit int) ([]metrics.RunMetrics, error) {
	var rows []RunRow
	if err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.CodeRepositoryError, "listing recent runs", err)
	}

	out := make([]metrics.RunMetrics, len(rows))
	for i, row := range rows {
		out[i] = metrics.RunMetrics{
			Run: metrics.RunRecord{
				S:                 row.S,
				R:                 row.R,
				N:                 row.N,
				P:                 row.P,
				TotalMatchingSize: row.TotalMatchingSize,
				TotalPhases:       row.TotalPhases,
			},
		}
	}
	return out, nil
}

func unmarshalJSONField(j JSONField, out interface{}) error {
	if j == nil {
		return nil
	}
	return json.Unmarshal(j, out)
}
