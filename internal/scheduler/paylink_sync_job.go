package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/coldbrew/cps/internal/chain"
	"github.com/coldbrew/cps/internal/config"
	"github.com/coldbrew/cps/internal/logger"
	"github.com/coldbrew/cps/internal/logic"
	"github.com/coldbrew/cps/internal/model"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// PaylinkSyncJob 收款链接扫描任务。
// 周期性遍历所有激活的收款链接，扫描链上转账并落账。
type PaylinkSyncJob struct {
	db      *gorm.DB
	paylink *logic.PaylinkLogic
	config  *config.Config
}

// NewPaylinkSyncJob 创建收款链接扫描任务
func NewPaylinkSyncJob(db *gorm.DB, resolver *chain.Resolver, cfg *config.Config) *PaylinkSyncJob {
	lookback := cfg.Scan.LookbackBlocks
	if lookback <= 0 {
		lookback = logic.DefaultLookbackBlocks
	}

	return &PaylinkSyncJob{
		db:      db,
		paylink: logic.NewPaylinkLogic(db, logic.ResolverReader(resolver), lookback),
		config:  cfg,
	}
}

// GetName 获取任务名称
func (j *PaylinkSyncJob) GetName() string {
	return "paylink_transfer_sync"
}

// GetSchedule 获取调度配置
func (j *PaylinkSyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Scan.Interval) * time.Second)
}

// Execute 执行任务
func (j *PaylinkSyncJob) Execute() {
	var paylinks []model.PaylinkModel
	err := j.db.Where("is_active = ? AND archived_at IS NULL", true).Find(&paylinks).Error
	if err != nil {
		logger.Error("Failed to fetch active paylinks: %v", err)
		return
	}

	if len(paylinks) == 0 {
		return
	}

	logger.Debug("Syncing transfers for %d paylinks", len(paylinks))

	workers := j.config.Scan.Workers
	if workers <= 0 {
		workers = 1
	}

	// 临时协程池并发扫描各收款链接，彼此游标独立互不影响
	pool, err := ants.NewPool(workers)
	if err != nil {
		logger.Error("Failed to create sync pool: %v", err)
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, p := range paylinks {
		handle := p.Handle
		wg.Add(1)

		err := pool.Submit(func() {
			defer wg.Done()
			j.syncOne(handle)
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit sync task for %s: %v", handle, err)
		}
	}

	wg.Wait()
}

// syncOne 扫描单个收款链接。扫描失败只记日志，下一轮从游标处重试。
func (j *PaylinkSyncJob) syncOne(handle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := j.paylink.SyncTransfers(ctx, handle, logic.SyncOptions{})
	if err != nil {
		logger.Warn("Sync failed for paylink %s: %v", handle, err)
		return
	}

	if len(result.Inserted) > 0 {
		logger.Info("Paylink %s: recorded %d new payments", handle, len(result.Inserted))
	}
}
