package outbox // 发件箱模式：业务写入与待发布消息同事务落库，由 relay 异步投递

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"prosterio-go/internal/logger"
	"prosterio-go/internal/storage"
	"prosterio-go/internal/storage/models"
	"prosterio-go/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	defaultMaxRetryCount   = 5
	publishTimeout         = 10 * time.Second
)

// Publisher 消息发布器，由 storage.RabbitMQ 实现
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// Options relay 参数，零值字段使用默认值
type Options struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
}

// MessageRelay 轮询 outbox 表并将消息发布到消息代理。
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	log             zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	done            chan struct{}
	wg              sync.WaitGroup
	tracer          trace.Tracer
}

// NewMessageRelay 创建一个新的 MessageRelay 实例。
func NewMessageRelay(db *gorm.DB, publisher Publisher, opts Options) *MessageRelay {
	if opts.PollingInterval <= 0 {
		opts.PollingInterval = defaultPollingInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetryCount
	}
	return &MessageRelay{
		db:              db,
		publisher:       publisher,
		log:             logger.Named("outbox-relay"),
		pollingInterval: opts.PollingInterval,
		batchSize:       opts.BatchSize,
		maxRetries:      opts.MaxRetries,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("prosterio-go/outbox"),
	}
}

// Start 开始消息中继的轮询过程。
func (r *MessageRelay) Start() {
	r.log.Info().Dur("interval", r.pollingInterval).Msg("MessageRelay starting")
	ticker := time.NewTicker(r.pollingInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.log.Info().Msg("MessageRelay stopped")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(context.Background()); err != nil {
					r.log.Error().Err(err).Msg("处理待发布消息失败")
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束。
func (r *MessageRelay) Stop() {
	close(r.done)
	r.wg.Wait()
}

// processPendingMessages 获取并处理一批来自 outbox 表的待处理消息。
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	// 空轮询不创建 span
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	// FOR UPDATE SKIP LOCKED: 多实例部署时各自拿到不同的行
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return fmt.Errorf("查询待发布消息失败: %w", err)
	}
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))),
	)
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := r.publisher.PublishMessage(pubCtx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		cancel()
		applyPublishResult(msg, err, r.maxRetries, time.Now())

		if err != nil {
			tracing.RecordPublishFailure(span, err, strconv.FormatUint(msg.ID, 10), msg.RetryCount)
			r.log.Warn().Err(err).
				Uint64("message_id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retry", msg.RetryCount).
				Msg("发布消息失败")
		}

		// 更新失败则整批回滚，消息保持 PENDING 下一轮重新拾取
		if err := tx.Save(msg).Error; err != nil {
			return fmt.Errorf("更新 outbox 消息 %d 失败: %w", msg.ID, err)
		}
	}

	return tx.Commit().Error
}

// applyPublishResult 根据发布结果更新消息状态
func applyPublishResult(msg *models.OutboxMessage, err error, maxRetries int, now time.Time) {
	if err != nil {
		msg.RetryCount++
		msg.ErrorMessage = err.Error()
		if msg.RetryCount >= maxRetries {
			msg.Status = models.OutboxStatusFailed
		}
		return
	}
	msg.Status = models.OutboxStatusSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}

// NewEmployeeEvent 构造一条待发布的员工事件，routing key 即事件类型
func NewEmployeeEvent(exchange string, evt storage.EmployeeEventMessage) (*models.OutboxMessage, error) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("序列化员工事件失败: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      strconv.FormatUint(evt.EmployeeID, 10),
		EventType:        evt.EventType,
		Payload:          string(payload),
		TargetExchange:   exchange,
		TargetRoutingKey: evt.EventType,
		Status:           models.OutboxStatusPending,
	}, nil
}
