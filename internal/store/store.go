package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newsfacts/internal/model"
)

// ErrNotFound is returned when a run or report does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	// CreatedAfter keeps runs created at or after this time when non-zero.
	CreatedAfter time.Time `json:"created_after,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, kind model.RunKind, params map[string]any) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Checkpoints of in-progress extract runs. LatestCheckpoint returns
	// nil when the run has none.
	SaveCheckpoint(ctx context.Context, runID string, predictions []model.Prediction) (*model.Checkpoint, error)
	LatestCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error)

	// Evaluation reports, one per run. The report is stored as JSON.
	SaveReport(ctx context.Context, runID string, report any) error
	GetReport(ctx context.Context, runID string) (json.RawMessage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, dsn, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

const defaultListLimit = 100

func listLimit(f RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func marshalParams(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	return b, eris.Wrap(err, "store: marshal params")
}

func decodeRunJSON(r *model.Run, params, summary []byte) error {
	if len(params) > 0 {
		if err := json.Unmarshal(params, &r.Params); err != nil {
			return eris.Wrap(err, "store: unmarshal params")
		}
	}
	if len(summary) > 0 {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summary, r.Summary); err != nil {
			return eris.Wrap(err, "store: unmarshal summary")
		}
	}
	return nil
}
