package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const jobNumberKeyPrefix = "repair:jobno:"

// JobNumberGenerator 工单号生成器，格式 JOB-YYYYMMDD-NNNN
type JobNumberGenerator interface {
	Next(ctx context.Context, now time.Time) (string, error)
}

func jobNumberPrefix(now time.Time) string {
	return "JOB-" + now.Format("20060102") + "-"
}

func formatJobNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// DBJobNumbers 基于当日最大工单号递增
type DBJobNumbers struct {
	jobs *JobRepository
}

func NewDBJobNumbers(jobs *JobRepository) *DBJobNumbers {
	return &DBJobNumbers{jobs: jobs}
}

func (g *DBJobNumbers) Next(ctx context.Context, now time.Time) (string, error) {
	prefix := jobNumberPrefix(now)
	seq, err := g.current(ctx, prefix)
	if err != nil {
		return "", err
	}
	return formatJobNumber(prefix, seq+1), nil
}

func (g *DBJobNumbers) current(ctx context.Context, prefix string) (int64, error) {
	maxNumber, err := g.jobs.MaxJobNumber(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("query max job number: %w", err)
	}
	if maxNumber == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(maxNumber, prefix), 10, 64)
	if err != nil {
		return 0, nil
	}
	return seq, nil
}

// RedisJobNumbers 使用 Redis INCR 生成当日序号，Redis 不可用时回退到数据库
type RedisJobNumbers struct {
	rdb      redis.UniversalClient
	fallback *DBJobNumbers
	logger   *zap.Logger
}

func NewRedisJobNumbers(rdb redis.UniversalClient, jobs *JobRepository, logger *zap.Logger) *RedisJobNumbers {
	return &RedisJobNumbers{rdb: rdb, fallback: NewDBJobNumbers(jobs), logger: logger}
}

func (g *RedisJobNumbers) Next(ctx context.Context, now time.Time) (string, error) {
	prefix := jobNumberPrefix(now)
	key := jobNumberKeyPrefix + now.Format("20060102")

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		g.logger.Warn("Job number sequence unavailable, falling back to database", zap.Error(err))
		return g.fallback.Next(ctx, now)
	}
	if seq == 1 {
		// 新的一天或 Redis 被清空：与数据库已有序号对齐
		g.rdb.Expire(ctx, key, 48*time.Hour)
		existing, err := g.fallback.current(ctx, prefix)
		if err != nil {
			return "", err
		}
		if existing > 0 {
			if seq, err = g.rdb.IncrBy(ctx, key, existing).Result(); err != nil {
				return g.fallback.Next(ctx, now)
			}
		}
	}
	return formatJobNumber(prefix, seq), nil
}
