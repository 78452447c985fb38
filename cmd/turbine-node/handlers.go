package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/turbine/internal/cluster"
	"github.com/dreamware/turbine/internal/gossip"
	"github.com/dreamware/turbine/internal/metrics"
	"github.com/dreamware/turbine/internal/shred"
	"github.com/dreamware/turbine/internal/stakes"
	"github.com/dreamware/turbine/internal/turbine"
)

// server holds everything the HTTP handlers need. The bank serves as both
// the root and the working stake view.
type server struct {
	dir        *gossip.Directory
	bank       *stakes.Bank
	broadcast  *turbine.Cache[*turbine.BroadcastNodes]
	retransmit *turbine.Cache[*turbine.RetransmitNodes]
	metrics    *metrics.Registry
	log        logrus.FieldLogger
	space      cluster.SocketAddrSpace
	fanout     int
}

// routes wires every endpoint onto a mux wrapped with request metrics.
//
// Endpoints:
//   - GET  /health              liveness
//   - GET  /metrics             prometheus exposition
//   - POST /gossip/push         accept a contact record
//   - GET  /gossip/peers        this node's contact plus every known peer
//   - GET  /turbine/broadcast   targets for a shred this node leads
//   - GET  /turbine/retransmit  targets for a shred received from a leader
//   - GET  /turbine/peers       the registry for a slot's epoch
//   - POST /bank/slot           move the bank to a new slot
//   - POST /bank/stakes         set the stakes of an epoch
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/gossip/push", s.handlePush)
	mux.HandleFunc("/gossip/peers", s.handlePeers)
	mux.HandleFunc("/turbine/broadcast", s.handleBroadcast)
	mux.HandleFunc("/turbine/retransmit", s.handleRetransmit)
	mux.HandleFunc("/turbine/peers", s.handleTreePeers)
	mux.HandleFunc("/bank/slot", s.handleBankSlot)
	mux.HandleFunc("/bank/stakes", s.handleBankStakes)
	return s.instrument(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// handlePush accepts a peer's contact record. Records for the local node or
// older than the one held are ignored.
//
// Response:
//   - 204 No Content: record processed
//   - 400 Bad Request: undecodable body or missing identity
//   - 405 Method Not Allowed: not a POST
func (s *server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cluster.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Node.ID.IsZero() {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	accepted := s.dir.Upsert(req.Node)
	s.metrics.RecordGossipPush(accepted)
	s.metrics.SetGossipPeers(s.dir.Len())
	if accepted {
		s.log.WithFields(logrus.Fields{
			"peer": req.Node.ID,
			"tvu":  req.Node.TVU,
		}).Debug("accepted contact info")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, cluster.PeersResponse{
		Self:  s.dir.MyContactInfo(),
		Peers: s.dir.Peers(),
	})
}

// shredFromQuery reads slot, index and type from the query string.
func shredFromQuery(r *http.Request) (shred.ID, error) {
	q := r.URL.Query()
	slot, err := strconv.ParseUint(q.Get("slot"), 10, 64)
	if err != nil {
		return shred.ID{}, fmt.Errorf("slot: %w", err)
	}
	index, err := strconv.ParseUint(q.Get("index"), 10, 32)
	if err != nil {
		return shred.ID{}, fmt.Errorf("index: %w", err)
	}
	typ, err := shred.ParseType(q.Get("type"))
	if err != nil {
		return shred.ID{}, err
	}
	return shred.ID{Slot: slot, Index: uint32(index), Type: typ}, nil
}

// fanoutFromQuery returns the fanout query parameter or the configured one.
func (s *server) fanoutFromQuery(r *http.Request) (int, error) {
	v := r.URL.Query().Get("fanout")
	if v == "" {
		return s.fanout, nil
	}
	return strconv.Atoi(v)
}

type targetsResponse struct {
	Shred     string           `json:"shred"`
	Epoch     cluster.Epoch    `json:"epoch"`
	Targets   []netip.AddrPort `json:"targets"`
	Neighbors []cluster.Pubkey `json:"neighbors,omitempty"`
	Children  []cluster.Pubkey `json:"children,omitempty"`
}

// handleBroadcast answers where this node would send a shred it produced.
//
// Query: slot, index, type (data|code), fanout (optional)
func (s *server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := shredFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fanout, err := s.fanoutFromQuery(r)
	if err != nil {
		http.Error(w, "fanout: "+err.Error(), http.StatusBadRequest)
		return
	}

	nodes := s.broadcast.Get(id.Slot, s.bank, s.bank, s.dir)
	targets := nodes.BroadcastAddrs(id, fanout, s.space)
	if targets == nil {
		targets = []netip.AddrPort{}
	}
	writeJSON(w, targetsResponse{
		Shred:   id.String(),
		Epoch:   nodes.Epoch(),
		Targets: targets,
	})
}

// handleRetransmit answers where this node would relay a shred from leader.
//
// Query: slot, index, type (data|code), leader (base58), fanout (optional)
//
// Response:
//   - 200 OK: neighbors, children and target addresses
//   - 400 Bad Request: malformed query or non-positive fanout
//   - 500 Internal Server Error: local node missing from the tree
func (s *server) handleRetransmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := shredFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	leader, err := cluster.ParsePubkey(r.URL.Query().Get("leader"))
	if err != nil {
		http.Error(w, "leader: "+err.Error(), http.StatusBadRequest)
		return
	}
	fanout, err := s.fanoutFromQuery(r)
	if err != nil {
		http.Error(w, "fanout: "+err.Error(), http.StatusBadRequest)
		return
	}

	nodes := s.retransmit.Get(id.Slot, s.bank, s.bank, s.dir)
	tree, err := nodes.Retransmit(leader, id, fanout)
	if err != nil {
		writeTreeError(w, err)
		return
	}
	targets := tree.Addrs
	if targets == nil {
		targets = []netip.AddrPort{}
	}
	writeJSON(w, targetsResponse{
		Shred:     id.String(),
		Epoch:     nodes.Epoch(),
		Targets:   targets,
		Neighbors: pubkeys(tree.Neighbors),
		Children:  pubkeys(tree.Children),
	})
}

func writeTreeError(w http.ResponseWriter, err error) {
	if errors.Is(err, turbine.ErrInvalidFanout) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func pubkeys(nodes []*turbine.Node) []cluster.Pubkey {
	out := make([]cluster.Pubkey, len(nodes))
	for i, n := range nodes {
		out[i] = n.Pubkey()
	}
	return out
}

type treeNode struct {
	ID          cluster.Pubkey  `json:"id"`
	Stake       uint64          `json:"stake"`
	TVU         *netip.AddrPort `json:"tvu,omitempty"`
	TVUForwards *netip.AddrPort `json:"tvu_forwards,omitempty"`
}

type treePeersResponse struct {
	Epoch      cluster.Epoch `json:"epoch"`
	TotalStake uint64        `json:"total_stake"`
	NumPeers   int           `json:"num_peers"`
	NumLive    int           `json:"num_peers_live"`
	Nodes      []treeNode    `json:"nodes"`
}

// handleTreePeers lists the retransmit registry for a slot's epoch in
// tree order.
//
// Query: slot
func (s *server) handleTreePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slot, err := strconv.ParseUint(r.URL.Query().Get("slot"), 10, 64)
	if err != nil {
		http.Error(w, "slot: "+err.Error(), http.StatusBadRequest)
		return
	}

	nodes := s.retransmit.Get(slot, s.bank, s.bank, s.dir)
	resp := treePeersResponse{
		Epoch:      nodes.Epoch(),
		TotalStake: nodes.TotalStake(),
		NumPeers:   nodes.NumPeers(),
		NumLive:    nodes.NumPeersLive(cluster.Timestamp()),
	}
	for _, n := range nodes.Nodes() {
		tn := treeNode{ID: n.Pubkey(), Stake: n.Stake()}
		if ci, ok := n.ContactInfo(); ok {
			tn.TVU = &ci.TVU
			tn.TVUForwards = &ci.TVUForwards
		}
		resp.Nodes = append(resp.Nodes, tn)
	}
	writeJSON(w, resp)
}

type slotRequest struct {
	Slot cluster.Slot `json:"slot"`
}

func (s *server) handleBankSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	s.bank.SetSlot(req.Slot)
	s.log.WithField("slot", req.Slot).Info("bank slot updated")
	w.WriteHeader(http.StatusNoContent)
}

type stakesRequest struct {
	Epoch  cluster.Epoch `json:"epoch"`
	Stakes []struct {
		ID    cluster.Pubkey `json:"id"`
		Stake uint64         `json:"stake"`
	} `json:"stakes"`
}

// handleBankStakes replaces the stake table of one epoch. Cached trees pick
// it up once their TTL runs out.
func (s *server) handleBankStakes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req stakesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	table := make(map[cluster.Pubkey]uint64, len(req.Stakes))
	for _, e := range req.Stakes {
		table[e.ID] = e.Stake
	}
	s.bank.SetEpochStakes(req.Epoch, table)
	s.log.WithFields(logrus.Fields{
		"epoch": req.Epoch,
		"nodes": len(table),
	}).Info("epoch stakes updated")
	w.WriteHeader(http.StatusNoContent)
}
