package retriever

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/unbound-force/flaglens/internal/flagconf"
)

// DefaultInterval is the polling cadence when the caller does not set
// one.
const DefaultInterval = 60 * time.Second

// A Poller periodically fetches flag configuration through a Retriever
// and reports changes. The zero value is not usable; set Retriever and
// OnChange at minimum.
type Poller struct {
	Retriever Retriever
	Interval  time.Duration

	// OnChange runs after every successful fetch whose content differs
	// from the previous one. The first fetch reports old as nil.
	OnChange func(old, updated flagconf.FlagSet)

	// OnError runs when a fetch or parse fails. Polling continues with
	// the last good configuration.
	OnError func(err error)

	mu       sync.Mutex
	checksum [sha256.Size]byte
	flags    flagconf.FlagSet
}

// Run fetches once immediately, then on every tick until ctx is done.
// The initial fetch must succeed; later failures are reported through
// OnError and do not stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.fetch(ctx); err != nil {
		return fmt.Errorf("initial fetch from %s: %w", p.Retriever.Location(), err)
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.fetch(ctx); err != nil && p.OnError != nil {
				p.OnError(err)
			}
		}
	}
}

// Flags returns the last successfully fetched configuration.
func (p *Poller) Flags() flagconf.FlagSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags
}

// Refresh forces an immediate fetch outside the polling cadence.
func (p *Poller) Refresh(ctx context.Context) error {
	return p.fetch(ctx)
}

func (p *Poller) fetch(ctx context.Context) error {
	data, err := p.Retriever.Retrieve(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	sum := sha256.Sum256(data)
	if sum == p.checksum {
		return nil
	}

	format := flagconf.DetectFormat(p.Retriever.Location(), data)
	flags, err := flagconf.Parse(data, format)
	if err != nil {
		return fmt.Errorf("parse %s: %w", p.Retriever.Location(), err)
	}

	old := p.flags
	p.checksum = sum
	p.flags = flags
	if p.OnChange != nil {
		p.OnChange(old, flags)
	}
	return nil
}
