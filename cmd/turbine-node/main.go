// Package main implements the turbine node, a diagnostics service that
// keeps a gossip view of the cluster and answers which peers a shred would
// be sent to, either as its leader or as a relay.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│              turbine-node               │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /health, /metrics                    │
//	│    /gossip/push, /gossip/peers          │
//	│    /turbine/broadcast                   │
//	│    /turbine/retransmit                  │
//	│    /turbine/peers                       │
//	│    /bank/slot, /bank/stakes             │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    gossip.Directory  - contact records  │
//	│    gossip.Sweeper    - stale pruning    │
//	│    stakes.Bank       - epoch stakes     │
//	│    turbine.Cache x2  - tree snapshots   │
//	└─────────────────────────────────────────┘
//
// Configuration is read from the YAML file named by TURBINE_CONFIG, with
// TURBINE_LISTEN, TURBINE_LOG_LEVEL, TURBINE_IDENTITY, TURBINE_TVU,
// TURBINE_TVU_FORWARDS and TURBINE_ENTRYPOINTS overriding it.
//
// Example usage:
//
//	TURBINE_CONFIG=node.yaml ./turbine-node
//
//	curl 'localhost:8080/turbine/retransmit?slot=1000&index=3&leader=<pubkey>'
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/turbine/internal/cluster"
	"github.com/dreamware/turbine/internal/config"
	"github.com/dreamware/turbine/internal/gossip"
	"github.com/dreamware/turbine/internal/metrics"
	"github.com/dreamware/turbine/internal/stakes"
	"github.com/dreamware/turbine/internal/turbine"
)

// logFatal is a variable to allow mocking logrus.Fatalf in tests.
var logFatal = logrus.Fatalf

// retryDelay is the pause between push attempts to an entrypoint.
var retryDelay = 400 * time.Millisecond

func main() {
	cfg, err := config.Load(getenv("TURBINE_CONFIG", ""))
	if err != nil {
		logFatal("config: %v", err)
		return
	}

	log := logrus.StandardLogger()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	self, err := cfg.ContactInfo()
	if err != nil {
		logFatal("contact info: %v", err)
		return
	}
	srv, err := newServer(cfg, self, log)
	if err != nil {
		logFatal("setup: %v", err)
		return
	}

	s := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{
			"id":     self.ID,
			"listen": cfg.Listen,
			"tvu":    self.TVU,
		}).Info("turbine node listening")
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	sweeper := gossip.NewSweeper(srv.dir, cfg.Gossip.SweepInterval, cfg.Gossip.MaxAge, log)
	sweeper.SetOnPruned(func(ids []cluster.Pubkey) {
		srv.metrics.RecordGossipPruned(len(ids))
		srv.metrics.SetGossipPeers(srv.dir.Len())
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	for _, ep := range cfg.Entrypoints {
		if err := pushContact(ctx, ep, self, 10, log); err != nil {
			log.WithError(err).WithField("entrypoint", ep).Warn("entrypoint unreachable, will keep trying")
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		gossipLoop(ctx, srv, cfg.Entrypoints, cfg.Gossip.PushInterval)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	log.Info("turbine node stopped")
}

// newServer builds the directory, bank and caches described by cfg. The
// configured stakes are installed for every epoch from the one containing
// the starting slot up to the epoch after its leader schedule epoch.
func newServer(cfg config.Config, self cluster.ContactInfo, log logrus.FieldLogger) (*server, error) {
	stakeMap, err := cfg.StakeMap()
	if err != nil {
		return nil, err
	}
	schedule := cfg.Schedule()
	bank := stakes.NewBank(cfg.Epoch.Slot, schedule)
	for epoch := schedule.Epoch(cfg.Epoch.Slot); epoch <= schedule.LeaderScheduleEpoch(cfg.Epoch.Slot)+1; epoch++ {
		bank.SetEpochStakes(epoch, stakeMap)
	}

	dir := gossip.NewDirectory(self, cfg.AddrSpace())
	dir.SetMaxClockSkew(cfg.Gossip.MaxAge)

	reg := metrics.NewRegistry()
	opts := []turbine.Option{turbine.WithLogger(log), turbine.WithMetrics(reg)}
	return &server{
		dir:        dir,
		bank:       bank,
		broadcast:  turbine.NewBroadcastCache(cfg.Turbine.CacheCapacity, cfg.Turbine.CacheTTL, opts...),
		retransmit: turbine.NewRetransmitCache(cfg.Turbine.CacheCapacity, cfg.Turbine.CacheTTL, opts...),
		metrics:    reg,
		log:        log,
		space:      cfg.AddrSpace(),
		fanout:     cfg.Turbine.Fanout,
	}, nil
}

// pushContact sends the local contact record to an entrypoint, retrying on
// failure to ride out the entrypoint still starting up.
func pushContact(ctx context.Context, entrypoint string, self cluster.ContactInfo, attempts int, log logrus.FieldLogger) error {
	body := cluster.PushRequest{Node: self}
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = cluster.PostJSON(ctx, entrypoint+"/gossip/push", body, nil)
		if lastErr == nil {
			log.WithField("entrypoint", entrypoint).Info("pushed contact info")
			return nil
		}
		log.WithError(lastErr).WithField("attempt", i+1).Debug("push retry")
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return lastErr
}

// pullPeers fetches an entrypoint's directory and merges it into ours,
// returning how many records were new or newer.
func pullPeers(ctx context.Context, entrypoint string, dir *gossip.Directory) (int, error) {
	var resp cluster.PeersResponse
	if err := cluster.GetJSON(ctx, entrypoint+"/gossip/peers", &resp); err != nil {
		return 0, err
	}
	merged := 0
	for _, ci := range append(resp.Peers, resp.Self) {
		if !ci.ID.IsZero() && dir.Upsert(ci) {
			merged++
		}
	}
	return merged, nil
}

// gossipLoop pushes the local record to every entrypoint and pulls their
// directories each interval until ctx is canceled.
func gossipLoop(ctx context.Context, srv *server, entrypoints []string, interval time.Duration) {
	if len(entrypoints) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		self := srv.dir.MyContactInfo()
		self.Wallclock = cluster.Timestamp()
		for _, ep := range entrypoints {
			entry := srv.log.WithField("entrypoint", ep)
			if err := pushContact(ctx, ep, self, 1, srv.log); err != nil {
				entry.WithError(err).Debug("push failed")
			}
			merged, err := pullPeers(ctx, ep, srv.dir)
			if err != nil {
				entry.WithError(err).Debug("pull failed")
				continue
			}
			if merged > 0 {
				entry.WithField("merged", merged).Debug("pulled contact info")
			}
		}
		srv.metrics.SetGossipPeers(srv.dir.Len())
	}
}

// getenv retrieves an environment variable with a default fallback value.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
