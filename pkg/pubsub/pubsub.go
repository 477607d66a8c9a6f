/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pubsub

import (
	"context"
	"sync"
	"time"

	"github.com/lib/pq"
	"k8s.io/klog/v2"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

// RequestLockRelease is the channel lock holders listen on. Messages are
// hints: the holder decides when to yield.
const RequestLockRelease = "request_lock_release"

// Handler receives the payload of one notification. Delivery is
// at-least-once across processes; handlers must be idempotent.
type Handler func(payload string)

// Bus is a process-wide pub/sub fanout over Postgres LISTEN/NOTIFY. All
// worker processes sharing the registry database see each other's messages.
type Bus struct {
	client   *dbclient.Client
	listener *pq.Listener

	mu        sync.RWMutex
	handlers  map[string]map[int64]Handler
	channels  map[string]bool
	closed    bool
	handlerId int64
}

var (
	once     sync.Once
	instance *Bus
)

// NewBus creates the singleton notification bus and starts its dispatch
// loop. The loop stops when ctx is canceled.
func NewBus(ctx context.Context, connInfo string) *Bus {
	once.Do(func() {
		listener := pq.NewListener(connInfo, 200*time.Millisecond, time.Minute,
			func(event pq.ListenerEventType, err error) {
				if err != nil {
					klog.ErrorS(err, "pubsub listener event", "event", event)
				}
			})
		instance = &Bus{
			client:   dbclient.NewClient(),
			listener: listener,
			handlers: make(map[string]map[int64]Handler),
			channels: make(map[string]bool),
		}
		go instance.dispatch(ctx)
	})
	return instance
}

// Subscribe registers a handler for a channel, issuing LISTEN on first use.
// The returned function unsubscribes the handler.
func (b *Bus) Subscribe(channel string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, storageerrors.NewInternalError("pubsub bus is closed")
	}
	if !b.channels[channel] {
		if err := b.listener.Listen(channel); err != nil {
			return nil, storageerrors.NewInternalError(err.Error())
		}
		b.channels[channel] = true
	}
	if b.handlers[channel] == nil {
		b.handlers[channel] = make(map[int64]Handler)
	}
	b.handlerId++
	id := b.handlerId
	b.handlers[channel][id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[channel], id)
	}, nil
}

// Publish sends a payload on a channel through NOTIFY.
func (b *Bus) Publish(ctx context.Context, channel, payload string) error {
	db, err := b.client.DB()
	if err != nil {
		return err
	}
	if _, err = db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, payload); err != nil {
		return storageerrors.NewDatabaseError(err.Error())
	}
	return nil
}

// Close stops the dispatch loop and the underlying listener.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	if err := b.listener.Close(); err != nil {
		klog.ErrorS(err, "failed to close pubsub listener")
	}
}

func (b *Bus) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case notification, ok := <-b.listener.Notify:
			if !ok {
				return
			}
			if notification == nil {
				// reconnect marker; LISTEN state survives in the listener
				continue
			}
			b.mu.RLock()
			handlers := make([]Handler, 0, len(b.handlers[notification.Channel]))
			for _, handler := range b.handlers[notification.Channel] {
				handlers = append(handlers, handler)
			}
			b.mu.RUnlock()
			for _, handler := range handlers {
				handler(notification.Extra)
			}
		case <-time.After(90 * time.Second):
			if err := b.listener.Ping(); err != nil {
				klog.ErrorS(err, "pubsub listener ping failed")
			}
		}
	}
}
