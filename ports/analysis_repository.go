package ports

import (
	"context"

	"gospc/domain/core"
	"gospc/domain/spc"
)

// AnalysisRepository persists solved analyses with their working and segment tables
type AnalysisRepository interface {
	Save(ctx context.Context, analysis *spc.Analysis) error
	Get(ctx context.Context, id core.AnalysisID) (*spc.Analysis, error)
	// List returns the newest analyses first
	List(ctx context.Context, limit int) ([]spc.AnalysisSummary, error)
	Delete(ctx context.Context, id core.AnalysisID) error
}
