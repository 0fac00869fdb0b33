package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polartar/vtvl-app-sub002/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error", "json", "stdout")
	m.Run()
}

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	_, ch := bus.Subscribe(TypeWithdrawalRecorded)

	bus.Publish(TypeWithdrawalRecorded, "payload")

	select {
	case event := <-ch:
		assert.Equal(t, TypeWithdrawalRecorded, event.Type)
		assert.Equal(t, "payload", event.Data)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_PublishOnlyMatchingType(t *testing.T) {
	bus := NewBus()
	_, reconcileCh := bus.Subscribe(TypeReconcileCompleted)
	_, scheduleCh := bus.Subscribe(TypeScheduleCreated)

	bus.Publish(TypeScheduleCreated, nil)

	select {
	case <-scheduleCh:
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case <-reconcileCh:
		t.Fatal("event delivered to wrong subscriber")
	default:
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	id, ch := bus.Subscribe(TypeScheduleDeployed)
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(TypeScheduleDeployed, id)
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// 取消订阅后发布不会 panic
	bus.Publish(TypeScheduleDeployed, nil)
}

func TestBus_DropsWhenSubscriberQueueFull(t *testing.T) {
	bus := NewBus()
	_, ch := bus.Subscribe(TypeWithdrawalRecorded)

	// 填满队列后继续发布，不阻塞
	for i := 0; i < subscriberQueueSize+10; i++ {
		bus.Publish(TypeWithdrawalRecorded, i)
	}

	assert.Len(t, ch, subscriberQueueSize)
}

func TestBus_SubscriberCount(t *testing.T) {
	bus := NewBus()
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Subscribe(TypeReconcileCompleted)
	bus.Subscribe(TypeReconcileCompleted)
	bus.Subscribe(TypeScheduleCreated)
	assert.Equal(t, 3, bus.SubscriberCount())
}
