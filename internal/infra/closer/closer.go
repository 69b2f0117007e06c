// Package closer collects shutdown hooks and runs them LIFO on signal.
package closer

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/logger"
)

type namedFunc struct {
	name string
	fn   func(context.Context) error
}

type Closer struct {
	mutex sync.Mutex
	once  sync.Once
	done  chan struct{}
	funcs []namedFunc
}

func New() *Closer {
	return &Closer{done: make(chan struct{})}
}

func (c *Closer) AddNamed(name string, fn func(context.Context) error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.funcs = append(c.funcs, namedFunc{name: name, fn: fn})
}

// Wait blocks until one of the signals arrives or CloseAll is called.
func (c *Closer) Wait(signals ...os.Signal) {
	channel := make(chan os.Signal, 1)
	signal.Notify(channel, signals...)
	defer signal.Stop(channel)

	select {
	case <-channel:
	case <-c.done:
	}
}

func (c *Closer) CloseAll(ctx context.Context) error {
	var closeErr error

	c.once.Do(func() {
		defer close(c.done)

		c.mutex.Lock()
		funcs := c.funcs
		c.funcs = nil
		c.mutex.Unlock()

		for i := len(funcs) - 1; i >= 0; i-- {
			if err := funcs[i].fn(ctx); err != nil {
				logger.Error(ctx, "shutdown hook failed",
					zap.String("hook", funcs[i].name),
					zap.Error(err),
				)
				if closeErr == nil {
					closeErr = fmt.Errorf("close %s: %w", funcs[i].name, err)
				}
			}
		}
	})

	return closeErr
}
