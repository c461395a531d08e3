// Package scheduler runs the periodic repair-shop sweeps (low-stock digest, overdue jobs).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/config"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/service"
	"go.uber.org/zap"
)

const runTimeout = 2 * time.Minute

// Job 定时任务；Run 返回处理的条目数
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int, error)
}

// Scheduler 定时任务调度器
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[string]Job
}

// New 创建调度器并注册任务；spec 使用标准 cron 表达式或 @hourly 等描述符
func New(logger *zap.Logger, jobs ...Job) (*Scheduler, error) {
	adapter := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger: logger,
		jobs:   make(map[string]Job, len(jobs)),
	}
	for _, j := range jobs {
		if err := s.Add(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RepairJobs 维修业务的默认任务
func RepairJobs(cfg config.SchedulerConfig, svc *service.Services) []Job {
	return []Job{
		{Name: "low_stock_digest", Spec: cfg.LowStockSpec, Run: svc.Part.NotifyLowStock},
		{Name: "overdue_jobs", Spec: cfg.OverdueSpec, Run: svc.Job.NotifyOverdue},
	}
}

// Add 注册任务
func (s *Scheduler) Add(j Job) error {
	if _, err := cron.ParseStandard(j.Spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", j.Name, j.Spec, err)
	}
	if _, err := s.cron.AddFunc(j.Spec, func() { s.run(context.Background(), j) }); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	s.mu.Lock()
	s.jobs[j.Name] = j
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow 立即执行指定任务
func (s *Scheduler) RunNow(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, j)
}

func (s *Scheduler) run(ctx context.Context, j Job) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	n, err := j.Run(ctx)
	if err != nil {
		s.logger.Error("Scheduled job failed", zap.String("job", j.Name), zap.Error(err))
		return n, err
	}
	s.logger.Info("Scheduled job finished",
		zap.String("job", j.Name),
		zap.Int("items", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return n, nil
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
