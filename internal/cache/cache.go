package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"smartsprint/internal/domain"
)

// Source fetches the collections the cache mirrors.
type Source interface {
	Tickets(ctx context.Context) ([]domain.Ticket, error)
	Developers(ctx context.Context) ([]domain.Developer, error)
	SystemStatus(ctx context.Context) (domain.SystemStatus, error)
}

// Cache is the local mirror of tickets, developers and system status for one
// session. Reloads are serialized and replace collections wholesale; readers
// always get copies.
type Cache struct {
	Logger *slog.Logger

	src      Source
	reloadMu sync.Mutex

	mu         sync.RWMutex
	tickets    []domain.Ticket
	developers []domain.Developer
	status     *domain.SystemStatus
	loaded     bool
	err        error
}

func New(src Source) *Cache {
	return &Cache{src: src}
}

// Dedup keeps the first ticket for each title and preserves order.
func Dedup(tickets []domain.Ticket) []domain.Ticket {
	seen := make(map[string]struct{}, len(tickets))
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if _, ok := seen[t.Title]; ok {
			continue
		}
		seen[t.Title] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Reload fetches all three collections concurrently. Either all of them are
// replaced or none is.
func (c *Cache) Reload(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	var (
		tickets    []domain.Ticket
		developers []domain.Developer
		status     domain.SystemStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tickets, err = c.src.Tickets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		developers, err = c.src.Developers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		status, err = c.src.SystemStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.logger().Warn("reload failed", "error", err)
		return fmt.Errorf("reload: %w", err)
	}

	deduped := Dedup(tickets)
	c.mu.Lock()
	c.tickets = deduped
	c.developers = developers
	c.status = &status
	c.loaded = true
	c.err = nil
	c.mu.Unlock()
	c.logger().Debug("cache reloaded", "tickets", len(deduped), "dropped_duplicates", len(tickets)-len(deduped), "developers", len(developers))
	return nil
}

// ReloadTickets refreshes only the ticket collection.
func (c *Cache) ReloadTickets(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	tickets, err := c.src.Tickets(ctx)
	if err != nil {
		c.logger().Warn("ticket reload failed", "error", err)
		return fmt.Errorf("reload tickets: %w", err)
	}
	deduped := Dedup(tickets)
	c.mu.Lock()
	c.tickets = deduped
	c.mu.Unlock()
	return nil
}

func (c *Cache) Tickets() []domain.Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.tickets, domain.Ticket.Clone)
}

func (c *Cache) Developers() []domain.Developer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.developers, domain.Developer.Clone)
}

func (c *Cache) Status() (domain.SystemStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status == nil {
		return domain.SystemStatus{}, false
	}
	return *c.status, true
}

func (c *Cache) Ticket(id int64) (domain.Ticket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tickets {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return domain.Ticket{}, false
}

func (c *Cache) Developer(id int64) (domain.Developer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.developers {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return domain.Developer{}, false
}

// TicketsByStatus returns the cached tickets in status, in cache order.
func (c *Cache) TicketsByStatus(status domain.Status) []domain.Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Ticket
	for _, t := range c.tickets {
		if t.Status == status {
			out = append(out, t.Clone())
		}
	}
	return out
}

func cloneAll[T any](in []T, clone func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}

// Loaded reports whether a full reload has succeeded at least once.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Err is the error of the last failed full reload, cleared by the next success.
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Cache) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
