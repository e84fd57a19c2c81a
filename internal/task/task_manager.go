package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"phonebay/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ==================== 错误定义 ====================

var (
	ErrUnknownTask = fmt.Errorf("%w: 未知任务", service.ErrNotFound)
	ErrTaskRunning = fmt.Errorf("%w: 任务正在执行", service.ErrConflict)
)

// ==================== Job 任务定义 ====================

// Job 一个可调度、可手动触发的任务
type Job struct {
	Name string
	// Spec 6 段 cron 表达式（含秒），为空时只能手动触发
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) (interface{}, error)
}

// JobStatus 任务状态
type JobStatus struct {
	Name         string      `json:"name"`
	Spec         string      `json:"spec"`
	Running      bool        `json:"running"`
	Runs         int64       `json:"runs"`
	LastRunAt    *time.Time  `json:"last_run_at,omitempty"`
	LastDuration string      `json:"last_duration,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
	LastResult   interface{} `json:"last_result,omitempty"`
	NextRunAt    *time.Time  `json:"next_run_at,omitempty"`
}

type jobState struct {
	job     Job
	entryID cron.EntryID
	running atomic.Bool

	mu     sync.Mutex
	status JobStatus
}

// ==================== TaskManager 定时任务管理器 ====================

// TaskManager 统一管理定时任务
// 1. cron 调度（秒级）
// 2. 同一任务不重入
// 3. 全局并发上限
type TaskManager struct {
	cron  *cron.Cron
	jobs  map[string]*jobState
	names []string
	sem   chan struct{}
	log   *zap.Logger
}

// NewTaskManager 创建任务管理器，concurrency 为同时执行的任务上限
func NewTaskManager(concurrency int) *TaskManager {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TaskManager{
		cron: cron.New(cron.WithSeconds()), // 支持秒级控制
		jobs: make(map[string]*jobState),
		sem:  make(chan struct{}, concurrency),
		log:  zap.L().Named("task"),
	}
}

// Register 注册任务，Spec 非空时加入调度
func (tm *TaskManager) Register(job Job) error {
	if _, exists := tm.jobs[job.Name]; exists {
		return fmt.Errorf("任务重复注册: %s", job.Name)
	}
	if job.Timeout <= 0 {
		job.Timeout = 10 * time.Minute
	}
	st := &jobState{job: job, status: JobStatus{Name: job.Name, Spec: job.Spec}}

	if job.Spec != "" {
		id, err := tm.cron.AddFunc(job.Spec, func() {
			if _, err := tm.run(context.Background(), st); err != nil && !errors.Is(err, ErrTaskRunning) {
				tm.log.Error("定时任务执行失败", zap.String("task", job.Name), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("任务 %s 的 cron 表达式无效: %w", job.Name, err)
		}
		st.entryID = id
	}

	tm.jobs[job.Name] = st
	tm.names = append(tm.names, job.Name)
	sort.Strings(tm.names)
	return nil
}

// ==================== 生命周期管理 ====================

// Start 启动调度
func (tm *TaskManager) Start() {
	tm.cron.Start()
	tm.log.Info("定时任务已启动", zap.Strings("tasks", tm.names))
}

// Stop 停止调度并等待执行中的任务结束
func (tm *TaskManager) Stop() {
	ctx := tm.cron.Stop()
	<-ctx.Done()
	tm.log.Info("定时任务已停止")
}

// ==================== 手动触发 / 状态 ====================

// Trigger 立即执行一次，同步返回结果
func (tm *TaskManager) Trigger(ctx context.Context, name string) (interface{}, error) {
	st, ok := tm.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return tm.run(ctx, st)
}

// Status 全部任务状态（按名称排序）
func (tm *TaskManager) Status() []JobStatus {
	out := make([]JobStatus, 0, len(tm.names))
	for _, name := range tm.names {
		st := tm.jobs[name]
		st.mu.Lock()
		s := st.status
		st.mu.Unlock()
		s.Running = st.running.Load()
		if st.entryID != 0 {
			if next := tm.cron.Entry(st.entryID).Next; !next.IsZero() {
				s.NextRunAt = &next
			}
		}
		out = append(out, s)
	}
	return out
}

func (tm *TaskManager) run(parent context.Context, st *jobState) (interface{}, error) {
	// 1. 不重入
	if !st.running.CompareAndSwap(false, true) {
		return nil, ErrTaskRunning
	}
	defer st.running.Store(false)

	// 2. 全局并发
	select {
	case tm.sem <- struct{}{}:
	case <-parent.Done():
		return nil, parent.Err()
	}
	defer func() { <-tm.sem }()

	// 3. 执行
	ctx, cancel := context.WithTimeout(parent, st.job.Timeout)
	defer cancel()

	start := time.Now()
	result, err := st.job.Run(ctx)
	elapsed := time.Since(start)

	st.mu.Lock()
	st.status.Runs++
	st.status.LastRunAt = &start
	st.status.LastDuration = elapsed.Round(time.Millisecond).String()
	st.status.LastResult = result
	st.status.LastError = ""
	if err != nil {
		st.status.LastError = err.Error()
	}
	st.mu.Unlock()

	tm.log.Info("任务执行完成",
		zap.String("task", st.job.Name),
		zap.Duration("elapsed", elapsed),
		zap.Any("result", result),
		zap.Error(err))
	return result, err
}
