package hub

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-hub/models"
)

// Имена каналов.
func TournamentChannel(tournamentID string) string {
	return "tournament:" + tournamentID
}

func MatchChannel(tournamentID, matchID string) string {
	return "match:" + tournamentID + ":" + matchID
}

func AuthoringChannel(tournamentID string) string {
	return "authoring:" + tournamentID
}

// MatchChannels is the fan-out set of one match update.
type MatchChannels struct {
	Tournament string
	Matches    []string
	Authoring  string
}

// ChannelsFor lists the channels a match update goes to. Subscribers may
// have joined by token or by legacy id, so both match channels are included.
func ChannelsFor(tournamentID, uniqueID, legacyID string) MatchChannels {
	mc := MatchChannels{
		Tournament: TournamentChannel(tournamentID),
		Authoring:  AuthoringChannel(tournamentID),
	}
	if uniqueID != "" {
		mc.Matches = append(mc.Matches, MatchChannel(tournamentID, uniqueID))
	}
	if legacyID != "" && legacyID != uniqueID {
		mc.Matches = append(mc.Matches, MatchChannel(tournamentID, legacyID))
	}
	return mc
}

// Router keeps channel membership and fans messages out to peers.
type Router struct {
	mu          sync.RWMutex
	channels    map[string]map[string]Peer
	memberships map[string]map[string]struct{}

	logger *slog.Logger
	now    func() time.Time
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		channels:    make(map[string]map[string]Peer),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger,
		now:         time.Now,
	}
}

func (r *Router) Subscribe(p Peer, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channel]
	if !ok {
		members = make(map[string]Peer)
		r.channels[channel] = members
	}
	members[p.ID()] = p

	joined, ok := r.memberships[p.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.memberships[p.ID()] = joined
	}
	joined[channel] = struct{}{}
}

func (r *Router) Unsubscribe(p Peer, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(p.ID(), channel)
}

func (r *Router) leave(peerID, channel string) {
	if members, ok := r.channels[channel]; ok {
		delete(members, peerID)
		if len(members) == 0 {
			delete(r.channels, channel)
		}
	}
	if joined, ok := r.memberships[peerID]; ok {
		delete(joined, channel)
		if len(joined) == 0 {
			delete(r.memberships, peerID)
		}
	}
}

// RemovePeer evicts the peer from every channel it joined.
func (r *Router) RemovePeer(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for channel := range r.memberships[p.ID()] {
		r.leave(p.ID(), channel)
	}
}

// Members returns the sorted peer ids subscribed to channel.
func (r *Router) Members(channel string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.channels[channel]))
	for id := range r.channels[channel] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Channels returns the sorted channels the peer is subscribed to.
func (r *Router) Channels(peerID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.memberships[peerID]))
	for ch := range r.memberships[peerID] {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

type target struct {
	peer    Peer
	channel string
}

// targets collects each subscribed peer once, tagged with the first channel
// it was found in.
func (r *Router) targets(channels ...string) []target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []target
	for _, ch := range channels {
		for id, p := range r.channels[ch] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, target{peer: p, channel: ch})
		}
	}
	return out
}

// deliver sends one message per target and evicts peers that fail. It
// returns how many peers accepted the message.
func (r *Router) deliver(ctx context.Context, targets []target, event string, payload any) int {
	ts := r.now().UnixMilli()
	delivered := 0
	var dead []Peer
	for _, t := range targets {
		err := t.peer.Deliver(models.Outbound{
			Event:     event,
			Channel:   t.channel,
			Payload:   payload,
			Timestamp: ts,
		})
		if err != nil {
			r.logger.WarnContext(ctx, "Evicting peer after failed delivery",
				slog.String("peer_id", t.peer.ID()),
				slog.String("transport", t.peer.Transport()),
				slog.String("channel", t.channel),
				slog.Any("error", err),
			)
			dead = append(dead, t.peer)
			continue
		}
		delivered++
	}

	for _, p := range dead {
		r.RemovePeer(p)
		p.Close()
	}
	return delivered
}

// Publish sends payload to every peer on channel.
func (r *Router) Publish(ctx context.Context, channel, event string, payload any) int {
	return r.deliver(ctx, r.targets(channel), event, payload)
}

// BroadcastMatchUpdate sends the viewer payload to the tournament channel and
// both match channels, each peer once, and the enriched payload to the
// authoring channel.
func (r *Router) BroadcastMatchUpdate(ctx context.Context, update models.AuthoringMatchUpdate) {
	mc := ChannelsFor(update.TournamentID, update.UniqueID, update.MatchID)

	viewers := append([]string{mc.Tournament}, mc.Matches...)
	n := r.deliver(ctx, r.targets(viewers...), models.EventMatchUpdated, update.MatchUpdate)
	a := r.deliver(ctx, r.targets(mc.Authoring), models.EventMatchUpdated, update)

	r.logger.DebugContext(ctx, "Broadcast match update",
		slog.String("tournament_id", update.TournamentID),
		slog.String("match_id", update.MatchID),
		slog.Int("viewers", n),
		slog.Int("authoring", a),
	)
}

// BroadcastTournament sends a tournament-wide event.
func (r *Router) BroadcastTournament(ctx context.Context, tournamentID, event string, payload any) {
	r.Publish(ctx, TournamentChannel(tournamentID), event, payload)
}
