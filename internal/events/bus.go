package events

import (
	"sync"
	"time"

	"github.com/polartar/vtvl-app-sub002/pkg/logger"
)

const subscriberQueueSize = 64

type EventType string

const (
	TypeReconcileCompleted EventType = "reconcile.completed"
	TypeWithdrawalRecorded EventType = "withdrawal.recorded"
	TypeScheduleCreated    EventType = "schedule.created"
	TypeScheduleDeployed   EventType = "schedule.deployed"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

type SubscriberID int

// Bus 进程内发布订阅通道，仪表盘数据更新时向订阅方推送
// 订阅方消费过慢时丢弃事件而不阻塞发布方
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType]map[SubscriberID]chan Event
	lastID      SubscriberID
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType]map[SubscriberID]chan Event),
	}
}

// Subscribe 订阅指定类型的事件
func (b *Bus) Subscribe(eventType EventType) (SubscriberID, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	id := b.lastID

	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[SubscriberID]chan Event)
	}

	ch := make(chan Event, subscriberQueueSize)
	b.subscribers[eventType][id] = ch
	return id, ch
}

// Unsubscribe 取消订阅并关闭通道
func (b *Bus) Unsubscribe(eventType EventType, id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[eventType]; ok {
		if ch, ok := subs[id]; ok {
			close(ch)
			delete(subs, id)
		}
	}
}

// Publish 向所有订阅方推送事件，通道已满时丢弃
func (b *Bus) Publish(eventType EventType, data interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
			logger.WithFields(map[string]interface{}{
				"event_type":    eventType,
				"subscriber_id": id,
			}).Warn("订阅通道已满，丢弃事件")
		}
	}
}

// SubscriberCount 当前订阅方总数
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscribers {
		count += len(subs)
	}
	return count
}
