package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/Dosada05/tournament-hub/services"
	"github.com/gorilla/websocket"
)

const (
	TransportRooms  = "rooms"
	TransportSocket = "socket"
)

var errMissingTournament = fmt.Errorf("%w: tournamentId is required", services.ErrValidationFailed)

// gateway holds what both websocket transports share.
type gateway struct {
	router      *Router
	tournaments *services.TournamentService
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

func newGateway(router *Router, tournaments *services.TournamentService, logger *slog.Logger, allowedOrigins []string) gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return gateway{
		router:      router,
		tournaments: tournaments,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows every origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			allowed = nil
			break
		}
	}
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func (g *gateway) accept(w http.ResponseWriter, r *http.Request, transport string, encode encodeFunc, handle handleFunc) (*Client, error) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой.
		return nil, err
	}
	return newClient(conn, transport, g.router, encode, handle, g.logger), nil
}

// matchChannel returns the channel for a match as the peer addressed it. A
// known match is keyed by the identifier scheme the peer used, normalized
// to the stored value, so "02" and "2" share a channel.
func (g *gateway) matchChannel(ctx context.Context, tournamentID, matchID string) string {
	m, err := g.tournaments.GetMatch(ctx, tournamentID, matchID)
	if err != nil {
		return MatchChannel(tournamentID, matchID)
	}
	if m.UniqueID != "" && m.UniqueID == matchID {
		return MatchChannel(tournamentID, m.UniqueID)
	}
	return MatchChannel(tournamentID, string(m.ID))
}

type connectedPayload struct {
	PeerID   string   `json:"peerId"`
	Channels []string `json:"channels"`
}

func (g *gateway) greet(c *Client) {
	c.reply(models.EventConnected, connectedPayload{PeerID: c.ID(), Channels: g.router.Channels(c.ID())})
}

func (g *gateway) start(c *Client) {
	go c.WritePump()
	go c.ReadPump()
}

type channelPayload struct {
	Channel string `json:"channel"`
}

type ackPayload struct {
	Event     string `json:"event"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type errorPayload struct {
	Event     string `json:"event,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error"`
	Code      string `json:"code"`
}

// errorCode classifies a service error for websocket clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "not_found"
	case errors.Is(err, services.ErrInvalidResult):
		return "invalid_result"
	case errors.Is(err, services.ErrValidationFailed):
		return "bad_request"
	case errors.Is(err, services.ErrTournamentConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// snapshotPayload returns JSON snapshots verbatim and anything else as base64.
func snapshotPayload(b []byte) any {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	return b
}

type matchStatePayload struct {
	Found       bool       `json:"found"`
	Resumable   bool       `json:"resumable"`
	State       any        `json:"state,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	AgeSeconds  int64      `json:"ageSeconds,omitempty"`
}

func (g *gateway) loadMatchState(ctx context.Context, tournamentID, matchID string) (*matchStatePayload, error) {
	state, status, err := g.tournaments.LoadMatchState(ctx, tournamentID, matchID)
	if err != nil {
		if errors.Is(err, services.ErrMatchStateNotFound) {
			return &matchStatePayload{Found: false}, nil
		}
		return nil, err
	}
	return &matchStatePayload{
		Found:       true,
		Resumable:   status.Resumable,
		State:       snapshotPayload(state.Snapshot),
		LastUpdated: status.LastUpdated,
		AgeSeconds:  status.AgeSeconds,
	}, nil
}
