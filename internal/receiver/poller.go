package receiver

import (
	"context"
	"fmt"
	"time"

	"musicpipe/internal/domain"
	"musicpipe/internal/telegram"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v3"
)

const (
	defaultPollTimeout = 10 * time.Second
	defaultCooldown    = 3 * time.Second
)

// UpdateSource long-polls the chat platform
type UpdateSource interface {
	Updates(ctx context.Context, offset int, timeout time.Duration) ([]tele.Update, error)
}

// Processor handles a single inbound event
type Processor interface {
	Process(ctx context.Context, ev domain.Event) error
}

// Options configures the receive loop
type Options struct {
	PollTimeout time.Duration
	Cooldown    time.Duration
	// Workers above one process different users in parallel
	Workers int
}

// Poller fetches updates and feeds them to the processor. Any failure is
// followed by a fixed cooldown before the next poll.
type Poller struct {
	source    UpdateSource
	processor Processor
	opts      Options
	logger    *zap.Logger

	offset int
}

// NewPoller creates a new receive loop
func NewPoller(source UpdateSource, processor Processor, opts Options, logger *zap.Logger) *Poller {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Poller{
		source:    source,
		processor: processor,
		opts:      opts,
		logger:    logger,
	}
}

// Run blocks until started is closed, then polls until ctx ends. A shutdown
// requested before startup completes means no poll is ever made.
func (p *Poller) Run(ctx context.Context, started <-chan struct{}) error {
	select {
	case <-ctx.Done():
		p.logger.Info("Receiver stopped before startup completed")
		return nil
	case <-started:
	}
	if ctx.Err() != nil {
		return nil
	}

	p.logger.Info("Receiver started",
		zap.Duration("poll_timeout", p.opts.PollTimeout),
		zap.Int("workers", p.opts.Workers),
	)

	for {
		err := p.poll(ctx)
		if ctx.Err() != nil {
			p.logger.Info("Receiver stopped")
			return nil
		}
		if err == nil {
			continue
		}

		p.logger.Error("Receive cycle failed, cooling down",
			zap.Duration("cooldown", p.opts.Cooldown),
			zap.Error(err),
		)

		timer := time.NewTimer(p.opts.Cooldown)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("Receiver stopped")
			return nil
		case <-timer.C:
		}
	}
}

// poll fetches one batch and dispatches it
func (p *Poller) poll(ctx context.Context) error {
	updates, err := p.source.Updates(ctx, p.offset, p.opts.PollTimeout)
	if err != nil {
		return fmt.Errorf("failed to get updates: %w", err)
	}
	if len(updates) == 0 {
		return nil
	}

	if p.opts.Workers > 1 {
		return p.dispatchSharded(ctx, updates)
	}
	return p.dispatch(ctx, updates)
}

// dispatch processes updates one by one. The offset moves past each update
// before it is processed, so a failing update is not fetched again.
func (p *Poller) dispatch(ctx context.Context, updates []tele.Update) error {
	for _, u := range updates {
		p.advance(u.ID)

		ev, ok := telegram.EventFromUpdate(u)
		if !ok {
			p.logger.Debug("Ignoring unsupported update", zap.Int("update_id", u.ID))
			continue
		}
		if err := p.processor.Process(ctx, ev); err != nil {
			return fmt.Errorf("failed to process update %d: %w", u.ID, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// dispatchSharded processes the batch with one goroutine per shard. Events
// of one user always land in the same shard, in arrival order.
func (p *Poller) dispatchSharded(ctx context.Context, updates []tele.Update) error {
	shards := make([][]domain.Event, p.opts.Workers)
	for _, u := range updates {
		p.advance(u.ID)

		ev, ok := telegram.EventFromUpdate(u)
		if !ok {
			p.logger.Debug("Ignoring unsupported update", zap.Int("update_id", u.ID))
			continue
		}
		idx := shardFor(ev.UserID, p.opts.Workers)
		shards[idx] = append(shards[idx], ev)
	}

	var g errgroup.Group
	for _, events := range shards {
		if len(events) == 0 {
			continue
		}
		events := events
		g.Go(func() error {
			var firstErr error
			for _, ev := range events {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := p.processor.Process(ctx, ev); err != nil {
					p.logger.Error("Failed to process update",
						zap.Int("update_id", ev.UpdateID),
						zap.Int64("user_id", ev.UserID),
						zap.Error(err),
					)
					if firstErr == nil {
						firstErr = fmt.Errorf("failed to process update %d: %w", ev.UpdateID, err)
					}
				}
			}
			return firstErr
		})
	}
	return g.Wait()
}

func (p *Poller) advance(updateID int) {
	if updateID >= p.offset {
		p.offset = updateID + 1
	}
}

func shardFor(userID int64, workers int) int {
	return int(uint64(userID) % uint64(workers))
}
