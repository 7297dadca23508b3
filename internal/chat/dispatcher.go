package chat

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Update is one inbound event; exactly one field is set.
type Update struct {
	Message  *Message
	Callback *Callback
}

// ChatID returns the chat the update belongs to.
func (u Update) ChatID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.ChatID
	case u.Callback != nil:
		return u.Callback.ChatID
	}
	return 0
}

// Dispatcher fans updates out to a fixed set of workers, sharded by chat id,
// so events of one chat run in arrival order while different chats proceed
// in parallel.
type Dispatcher struct {
	handler Handler
	workers int
	buffer  int
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher with the given worker count
func NewDispatcher(handler Handler, workers int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		handler: handler,
		workers: workers,
		buffer:  64,
		logger:  logger,
	}
}

// Run consumes updates until the channel is closed or ctx is cancelled, then
// waits for in-flight events to finish.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan Update) {
	queues := make([]chan Update, d.workers)
	var wg sync.WaitGroup

	for i := range queues {
		queues[i] = make(chan Update, d.buffer)
		wg.Add(1)
		go func(q <-chan Update) {
			defer wg.Done()
			for u := range q {
				d.handle(ctx, u)
			}
		}(queues[i])
	}

	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			select {
			case queues[d.shard(u.ChatID())] <- u:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (d *Dispatcher) shard(chatID int64) int {
	return int(uint64(chatID) % uint64(d.workers))
}

// handle runs a single event, recovering any panic so one bad event never
// stops the worker.
func (d *Dispatcher) handle(ctx context.Context, u Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic recovered while handling update",
				slog.Int64("chat_id", u.ChatID()),
				slog.Any("error", fmt.Errorf("%v", r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	switch {
	case u.Message != nil:
		d.handler.HandleMessage(ctx, *u.Message)
	case u.Callback != nil:
		d.handler.HandleCallback(ctx, *u.Callback)
	}
}
