package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "banksampah:"

// RedisBroker доставляет уведомления между экземплярами сервиса через Redis Pub/Sub.
type RedisBroker struct {
	rdb    redis.UniversalClient
	logger *zap.Logger
}

// ConnectRedis подключается к Redis и проверяет соединение.
func ConnectRedis(ctx context.Context, addr, password string) (redis.UniversalClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  time.Second,
		ReadTimeout:  400 * time.Millisecond,
		WriteTimeout: 400 * time.Millisecond,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			_ = cn.ClientSetName(ctx, "banksampah").Err()
			return nil
		},
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

// NewRedisBroker создаёт брокер поверх готового клиента Redis.
func NewRedisBroker(rdb redis.UniversalClient, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, logger: logger}
}

// Publish отправляет уведомление в канал темы.
func (b *RedisBroker) Publish(ctx context.Context, topic string) error {
	if err := b.rdb.Publish(ctx, channelPrefix+topic, "changed").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe подписывается на канал темы. Сообщения Redis преобразуются в
// схлопывающиеся уведомления.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	ps := b.rdb.Subscribe(ctx, channelPrefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	ch := make(chan struct{}, 1)
	stop := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			if err := ps.Close(); err != nil {
				b.logger.Debug("close redis subscription", zap.String("topic", topic), zap.Error(err))
			}
		})
	}

	go func() {
		defer close(ch)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-stop:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				notify(ch)
			}
		}
	}()

	return ch, cancel, nil
}

// Close закрывает клиент Redis.
func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
