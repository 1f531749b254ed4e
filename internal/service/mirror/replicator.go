package mirror

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/scisign/config"
	"github.com/weiwangfds/scisign/internal/database"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
	"gorm.io/gorm"
)

// 默认队列与重试参数
const (
	defaultWorkers       = 2
	defaultQueueSize     = 100
	defaultMaxRetries    = 5
	defaultRetryInterval = 30 * time.Second
	contentTypePNG       = "image/png"
)

// job 一次镜像任务
type job struct {
	op       string // database.MirrorOpUpload / MirrorOpDelete
	filename string
	path     string
	attempt  int
}

// Replicator 签名文件镜像复制器
// 作为LocalStore的观察者接收保存/删除通知，由后台工作协程上传或删除云端对象。
// 同一文件名的任务按文件名哈希固定到同一个工作协程，保证删除排在上传之后。
// 队列满时丢弃任务并记录警告，不阻塞请求处理
type Replicator struct {
	provider      Provider
	db            *gorm.DB
	logger        logrus.FieldLogger
	prefix        string
	workers       int
	maxRetries    int
	retryInterval time.Duration

	queues   []chan job // 每个工作协程一个队列
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
}

// NewReplicator 创建镜像复制器
// 参数:
//   - provider: 云存储提供商
//   - db: 用于写入mirror_logs，nil时只记录日志
//   - cfg: 镜像配置（前缀、工作协程数、队列大小、重试策略）
//   - logger: 日志实例
func NewReplicator(provider Provider, db *gorm.DB, cfg config.MirrorConfig, logger logrus.FieldLogger) *Replicator {
	r := &Replicator{
		provider:      provider,
		db:            db,
		logger:        logger.WithField("component", "mirror"),
		prefix:        cfg.Prefix,
		workers:       cfg.Workers,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
	}
	if r.workers <= 0 {
		r.workers = defaultWorkers
	}
	if r.maxRetries <= 0 {
		r.maxRetries = defaultMaxRetries
	}
	if r.retryInterval <= 0 {
		r.retryInterval = defaultRetryInterval
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r.queues = make([]chan job, r.workers)
	for i := range r.queues {
		r.queues[i] = make(chan job, queueSize)
	}
	return r
}

// ObjectKey 签名文件在云端的对象键
func (r *Replicator) ObjectKey(filename string) string {
	if r.prefix == "" {
		return filename + ".png"
	}
	return path.Join(r.prefix, filename+".png")
}

// Start 启动工作协程
func (r *Replicator) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("mirror replicator is already running")
	}
	r.running = true
	r.stopChan = make(chan struct{})

	for _, q := range r.queues {
		r.wg.Add(1)
		go r.worker(ctx, r.stopChan, q)
	}

	r.logger.WithFields(logrus.Fields{
		"provider": r.provider.Name(),
		"workers":  r.workers,
	}).Info("mirror replicator started")
	return nil
}

// Stop 停止工作协程并等待正在处理的任务完成
// 队列中尚未处理的任务被丢弃
func (r *Replicator) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	dropped := 0
	for _, q := range r.queues {
		dropped += len(q)
	}
	r.logger.WithField("dropped", dropped).Info("mirror replicator stopped")
	return nil
}

// SignatureSaved 实现signature.Observer
func (r *Replicator) SignatureSaved(filename, filePath string) {
	if err := r.enqueue(job{op: database.MirrorOpUpload, filename: filename, path: filePath}); err != nil {
		r.logger.WithError(err).WithField("filename", filename).Warn("mirror upload dropped")
	}
}

// SignatureDeleted 实现signature.Observer
func (r *Replicator) SignatureDeleted(filename string) {
	if err := r.enqueue(job{op: database.MirrorOpDelete, filename: filename}); err != nil {
		r.logger.WithError(err).WithField("filename", filename).Warn("mirror delete dropped")
	}
}

// shard 文件名对应的队列
func (r *Replicator) shard(filename string) chan job {
	h := fnv.New32a()
	h.Write([]byte(filename))
	return r.queues[h.Sum32()%uint32(len(r.queues))]
}

func (r *Replicator) enqueue(j job) error {
	select {
	case r.shard(j.filename) <- j:
		return nil
	default:
		return apperrors.ErrMirrorQueueFullError
	}
}

func (r *Replicator) worker(ctx context.Context, stop <-chan struct{}, queue <-chan job) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case j := <-queue:
			j.attempt++
			if r.process(ctx, j) {
				r.scheduleRetry(ctx, stop, j)
			}
		}
	}
}

// process 执行一次任务，返回是否需要重试
func (r *Replicator) process(ctx context.Context, j job) (retry bool) {
	start := time.Now()
	key := r.ObjectKey(j.filename)

	var size int64
	var err error
	switch j.op {
	case database.MirrorOpUpload:
		size, err = r.upload(ctx, key, j.path)
	case database.MirrorOpDelete:
		if err = r.provider.Delete(ctx, key); err != nil {
			err = apperrors.WrapCode(apperrors.ErrMirrorDeleteFailed, err)
		}
	default:
		err = fmt.Errorf("unknown mirror operation %q", j.op)
	}

	log := r.logger.WithFields(logrus.Fields{
		"op":       j.op,
		"filename": j.filename,
		"key":      key,
		"attempt":  j.attempt,
	})

	// 上传前文件已被删除，删除通知会处理云端对象
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug("signature removed before upload, skipping")
		return false
	}

	r.record(j, key, size, time.Since(start), err)
	if err == nil {
		log.Debug("mirror operation succeeded")
		return false
	}

	if j.attempt >= r.maxRetries {
		log.WithError(err).Error("mirror operation failed, giving up")
		return false
	}
	log.WithError(err).Warn("mirror operation failed, will retry")
	return true
}

func (r *Replicator) upload(ctx context.Context, key, filePath string) (int64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := r.provider.Upload(ctx, key, f, info.Size(), contentTypePNG); err != nil {
		return info.Size(), apperrors.WrapCode(apperrors.ErrMirrorUploadFailed, err)
	}
	return info.Size(), nil
}

// scheduleRetry 退避后重新入队，间隔为 attempt^2 * retryInterval
// 上传重试时本地文件若已删除会在process中跳过
func (r *Replicator) scheduleRetry(ctx context.Context, stop <-chan struct{}, j job) {
	backoff := time.Duration(j.attempt*j.attempt) * r.retryInterval

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTimer(backoff)
		defer t.Stop()

		select {
		case <-ctx.Done():
		case <-stop:
		case <-t.C:
			if err := r.enqueue(j); err != nil {
				r.logger.WithError(err).WithField("filename", j.filename).Warn("mirror retry dropped")
			}
		}
	}()
}

// record 写入同步日志
func (r *Replicator) record(j job, key string, size int64, elapsed time.Duration, opErr error) {
	if r.db == nil {
		return
	}

	entry := &database.MirrorLog{
		Filename:  j.filename,
		Provider:  r.provider.Name(),
		Operation: j.op,
		Status:    database.MirrorStatusSuccess,
		ObjectKey: key,
		Attempts:  j.attempt,
		FileSize:  size,
		Duration:  elapsed.Milliseconds(),
	}
	if opErr != nil {
		entry.Status = database.MirrorStatusFailed
		entry.ErrorMsg = opErr.Error()
	}
	if err := r.db.Create(entry).Error; err != nil {
		r.logger.WithError(err).Warn("failed to write mirror log")
	}
}

// RecentLogs 最近的同步日志，按时间倒序
func (r *Replicator) RecentLogs(ctx context.Context, status string, limit int) ([]database.MirrorLog, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var logs []database.MirrorLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, "查询镜像日志失败", err)
	}
	return logs, nil
}
