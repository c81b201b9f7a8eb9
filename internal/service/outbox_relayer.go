package service

import (
	"context"
	"log/slog"
	"time"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
)

type EventSender func(ctx context.Context, ob *model.IdeaOutbox) error

// OutboxRelayer 从 outbox 表读取想法事件并投递
type OutboxRelayer struct {
	repo      *rdb.OutboxRepository
	batchSize int
	maxRetry  int
	interval  time.Duration
	sender    EventSender
	log       *slog.Logger
}

func NewOutboxRelayer(repo *rdb.OutboxRepository, sender EventSender, interval time.Duration, batchSize int, log *slog.Logger) *OutboxRelayer {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &OutboxRelayer{
		repo:      repo,
		batchSize: batchSize,
		maxRetry:  5,
		interval:  interval,
		sender:    sender,
		log:       log,
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce 按批读取事件；单条失败记重试，不影响后续事件
func (r *OutboxRelayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize, r.maxRetry)
	if err != nil {
		r.log.ErrorContext(ctx, "outbox query failed", "err", err)
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err := r.sender(ctx, &ob); err != nil {
			pkg.OutboxRelayedTotal.WithLabelValues("error").Inc()
			r.log.WarnContext(ctx, "outbox send failed", "id", ob.ID, "event", ob.EventType, "retry", ob.Retry, "err", err)
			if err := r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				r.log.ErrorContext(ctx, "outbox retry update failed", "id", ob.ID, "err", err)
			}
			continue
		}
		pkg.OutboxRelayedTotal.WithLabelValues("ok").Inc()
		if err := r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			r.log.ErrorContext(ctx, "outbox success update failed", "id", ob.ID, "err", err)
			continue
		}
		sent++
	}
	return sent
}

// KafkaSender 以想法ID为 key 投递到 kafka
func KafkaSender(p *pkg.KafkaProducer) EventSender {
	return func(ctx context.Context, ob *model.IdeaOutbox) error {
		return p.Send(ctx, ob.IdeaID, []byte(ob.Payload), map[string]string{"event_type": ob.EventType})
	}
}

// LogSender 未启用 kafka 时只打印事件
func LogSender(log *slog.Logger) EventSender {
	return func(ctx context.Context, ob *model.IdeaOutbox) error {
		log.InfoContext(ctx, "outbox event", "event", ob.EventType, "idea_id", ob.IdeaID, "payload", ob.Payload)
		return nil
	}
}
