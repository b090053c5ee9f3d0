package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Manager runs registered cleanup steps in reverse registration order once
// the process is asked to stop. Each step gets its own timeout.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	funcs []step
}

type step struct {
	name string
	fn   func(context.Context) error
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{timeout: timeout, logger: logger}
}

func (m *Manager) Add(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, step{name: name, fn: fn})
}

// Wait blocks until SIGINT/SIGTERM or ctx is done, then runs the steps.
func (m *Manager) Wait(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	m.logger.Info("shutdown signal received")
	return m.Run()
}

// Run executes every step, last registered first, and joins their errors.
func (m *Manager) Run() error {
	m.mu.Lock()
	funcs := make([]step, len(m.funcs))
	copy(funcs, m.funcs)
	m.mu.Unlock()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		s := funcs[i]

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		start := time.Now()
		err := s.fn(ctx)
		cancel()

		if err != nil {
			m.logger.Error("shutdown step failed",
				zap.String("name", s.name),
				zap.Error(err),
				zap.Duration("duration", time.Since(start)))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		m.logger.Info("shutdown step completed",
			zap.String("name", s.name),
			zap.Duration("duration", time.Since(start)))
	}

	m.logger.Info("graceful shutdown completed")
	return errors.Join(errs...)
}

func HTTPServer(srv interface {
	Shutdown(context.Context) error
}) func(context.Context) error {
	return func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}
}

func Closer(c io.Closer) func(context.Context) error {
	return func(context.Context) error {
		return c.Close()
	}
}
