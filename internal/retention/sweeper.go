// Package retention deletes data older than the configured retention
// period. The sweep runs on a cron schedule and can also be triggered
// by the master maintenance endpoint.
package retention

import (
	"time"

	"go.uber.org/zap"

	"experts-service/internal/store"
)

// Summary reports what one sweep removed.
type Summary struct {
	Years             int       `json:"years"`
	Cutoff            time.Time `json:"cutoff"`
	DeletedRequests   int       `json:"deleted_requests"`
	DeletedExperts    int       `json:"deleted_experts"`
	DeletedWorkspaces int       `json:"deleted_workspaces"`
}

// Sweeper removes expired rows.
type Sweeper struct {
	store *store.Store
	log   *zap.Logger
	years int
	now   func() time.Time
}

// NewSweeper builds a sweeper with the given retention period.
func NewSweeper(st *store.Store, log *zap.Logger, years int) *Sweeper {
	return &Sweeper{store: st, log: log, years: years, now: time.Now}
}

// Run performs one sweep. A failure on an individual row is logged and
// the sweep continues, so one bad row never stalls retention for the
// rest of the data. The 'default' workspace is never removed.
func (s *Sweeper) Run() Summary {
	cutoff := s.now().Add(-time.Duration(s.years) * 365 * 24 * time.Hour)
	summary := Summary{Years: s.years, Cutoff: cutoff}

	requests, err := s.store.RequestsCreatedBefore(cutoff)
	if err != nil {
		s.log.Error("retention: request scan failed", zap.Error(err))
	}
	for _, req := range requests {
		if err := s.store.DeleteRequest(req.ID); err != nil {
			s.log.Error("retention: request delete failed",
				zap.String("request_id", req.ID), zap.Error(err))
			continue
		}
		summary.DeletedRequests++
	}

	experts, err := s.store.ExpertsCreatedBefore(cutoff)
	if err != nil {
		s.log.Error("retention: expert scan failed", zap.Error(err))
	}
	for _, expert := range experts {
		if err := s.store.DeleteExpertCascade(expert.WorkspaceID, expert.ID); err != nil {
			s.log.Error("retention: expert delete failed",
				zap.String("expert_id", expert.ID), zap.Error(err))
			continue
		}
		summary.DeletedExperts++
	}

	workspaces, err := s.store.WorkspacesCreatedBefore(cutoff)
	if err != nil {
		s.log.Error("retention: workspace scan failed", zap.Error(err))
	}
	for _, ws := range workspaces {
		if ws.Protected() {
			continue
		}
		if err := s.store.DeleteWorkspaceCascade(ws.ID); err != nil {
			s.log.Error("retention: workspace delete failed",
				zap.String("workspace_id", ws.ID), zap.Error(err))
			continue
		}
		summary.DeletedWorkspaces++
	}

	s.log.Info("retention sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("deleted_requests", summary.DeletedRequests),
		zap.Int("deleted_experts", summary.DeletedExperts),
		zap.Int("deleted_workspaces", summary.DeletedWorkspaces))
	return summary
}
