package gossip

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/turbine/internal/cluster"
)

// Sweeper periodically drops peers whose contact records have gone stale
// and restamps the local record so it never looks stale to others.
// Thread-safe: Start and Stop may be called from different goroutines.
type Sweeper struct {
	dir      *Directory
	log      logrus.FieldLogger
	onPruned func(ids []cluster.Pubkey) // Callback when peers are dropped
	clock    func() uint64              // Milliseconds, cluster.Timestamp by default
	ctx      context.Context            // Internal context for Stop
	cancel   context.CancelFunc         // Cancels ctx
	interval time.Duration              // How often to sweep
	maxAge   time.Duration              // Records older than this are dropped
	wg       sync.WaitGroup             // Waits for Start to return
}

// NewSweeper creates a sweeper over dir.
//
// Parameters:
//   - dir: directory to prune
//   - interval: how often to sweep
//   - maxAge: records whose wallclock is older than this are removed
//   - log: destination for sweep logs (nil uses the logrus standard logger)
//
// Example:
//
//	sweeper := gossip.NewSweeper(dir, 5*time.Second, time.Minute, log)
//	go sweeper.Start(ctx)
//	defer sweeper.Stop()
func NewSweeper(dir *Directory, interval, maxAge time.Duration, log logrus.FieldLogger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		dir:      dir,
		log:      log,
		clock:    cluster.Timestamp,
		interval: interval,
		maxAge:   maxAge,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetOnPruned sets the callback invoked with the identities removed by a
// sweep. It is not called for sweeps that remove nothing.
func (s *Sweeper) SetOnPruned(callback func(ids []cluster.Pubkey)) {
	s.onPruned = callback
}

// Start sweeps once immediately and then every interval until ctx or the
// sweeper itself is canceled. It blocks.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	if ctx == nil {
		ctx = s.ctx
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{
		"interval": s.interval,
		"max_age":  s.maxAge,
	}).Info("gossip sweeper started")

	s.Sweep()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			s.log.Debug("gossip sweeper stopping due to context cancellation")
			return
		case <-s.ctx.Done():
			s.log.Debug("gossip sweeper stopping due to internal cancellation")
			return
		}
	}
}

// Stop cancels the sweep loop and waits for it to return.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("gossip sweeper stopped")
}

// Sweep runs one pass and returns the identities removed.
func (s *Sweeper) Sweep() []cluster.Pubkey {
	now := s.clock()
	s.dir.RefreshSelf(now)

	removed := s.dir.Prune(now, s.maxAge)
	if len(removed) == 0 {
		return nil
	}
	for _, id := range removed {
		s.log.WithField("peer", id).Info("dropped stale contact info")
	}
	if s.onPruned != nil {
		s.onPruned(removed)
	}
	return removed
}
