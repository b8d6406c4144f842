// Package feed рассылает уведомления об изменении заявок подписчикам живых выборок.
//
// Уведомление не несёт данных: получатель повторяет свой запрос и отправляет
// клиенту полный снимок. Несколько уведомлений подряд схлопываются в одно.
package feed

import (
	"context"
	"sync"
)

// Broker публикует и доставляет уведомления по темам.
type Broker interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error)
	Close() error
}

// UserTopic возвращает тему заявок пользователя.
func UserTopic(userID string) string {
	return "deposits:user:" + userID
}

// AffiliationTopic возвращает тему заявок аффилиации.
func AffiliationTopic(affiliationID string) string {
	return "deposits:affiliation:" + affiliationID
}

// LocalBroker доставляет уведомления внутри одного процесса.
type LocalBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewLocalBroker создаёт брокер без внешних зависимостей.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Publish уведомляет всех подписчиков темы, не блокируясь на медленных.
func (b *LocalBroker) Publish(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[topic] {
		notify(ch)
	}
	return nil
}

// Subscribe подписывается на тему. Возвращаемая функция отменяет подписку и закрывает канал.
func (b *LocalBroker) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan struct{}]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], ch)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			close(ch)
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel, nil
}

// Close ничего не делает: подписки закрываются своими контекстами.
func (b *LocalBroker) Close() error {
	return nil
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
