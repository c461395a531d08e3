package service

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/policy"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
)

// DashboardService 首页统计
type DashboardService struct {
	repos *repository.Repositories
	clock clockwork.Clock
}

func NewDashboardService(d Deps) *DashboardService {
	return &DashboardService{repos: d.Repos, clock: d.Clock}
}

// DashboardSummary 统计结果
type DashboardSummary struct {
	StatusCounts   map[entity.JobStatus]int64  `json:"status_counts"`
	OpenJobs       int64                       `json:"open_jobs"`
	OverdueJobs    int                         `json:"overdue_jobs"`
	LowStockParts  int64                       `json:"low_stock_parts"`
	TechnicianLoad []repository.TechnicianLoad `json:"technician_load"`
}

func (s *DashboardService) Summary(ctx context.Context, actor policy.Actor) (*DashboardSummary, error) {
	if err := policy.Authorize(actor, policy.ActionViewDashboard, nil); err != nil {
		return nil, err
	}

	rows, err := s.repos.Job.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	summary := &DashboardSummary{StatusCounts: make(map[entity.JobStatus]int64, len(entity.AllJobStatuses))}
	for _, st := range entity.AllJobStatuses {
		summary.StatusCounts[st] = 0
	}
	for _, r := range rows {
		summary.StatusCounts[r.Status] = r.Count
		if !r.Status.IsTerminal() {
			summary.OpenJobs += r.Count
		}
	}

	overdue, err := s.repos.Job.FindOverdue(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	summary.OverdueJobs = len(overdue)

	if summary.LowStockParts, err = s.repos.Part.CountLowStock(ctx); err != nil {
		return nil, err
	}
	if summary.TechnicianLoad, err = s.repos.Job.CountOpenByTechnician(ctx); err != nil {
		return nil, err
	}
	return summary, nil
}
