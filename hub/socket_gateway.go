package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/Dosada05/tournament-hub/services"
)

// Типы сообщений сокетного шлюза.
const (
	SocketSubscribe   = "subscribe"
	SocketUnsubscribe = "unsubscribe"
	SocketMatchResult = "match-result"
	SocketPing        = "ping"
)

type socketInbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type socketOutbound struct {
	Type      string `json:"type"`
	Channel   string `json:"channel,omitempty"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

type socketRequest struct {
	TournamentID string `json:"tournamentId"`
	MatchID      string `json:"matchId"`
	services.MatchResultInput
}

func encodeSocket(msg models.Outbound) ([]byte, error) {
	return json.Marshal(socketOutbound{
		Type:      msg.Event,
		Channel:   msg.Channel,
		Payload:   msg.Payload,
		Timestamp: msg.Timestamp,
	})
}

// SocketGateway serves plain websocket clients that subscribe through the
// query string or with subscribe messages.
type SocketGateway struct {
	gateway
}

func NewSocketGateway(router *Router, tournaments *services.TournamentService, logger *slog.Logger, allowedOrigins []string) *SocketGateway {
	return &SocketGateway{gateway: newGateway(router, tournaments, logger, allowedOrigins)}
}

func (g *SocketGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tournamentID := r.URL.Query().Get("tournamentId")
	matchID := r.URL.Query().Get("matchId")

	c, err := g.accept(w, r, TransportSocket, encodeSocket, g.handle)
	if err != nil {
		g.logger.Warn("Failed to upgrade socket connection", slog.Any("error", err))
		return
	}
	if tournamentID != "" {
		g.subscribe(r.Context(), c, tournamentID, matchID)
	}
	g.greet(c)
	g.start(c)
}

func (g *SocketGateway) subscribe(ctx context.Context, c *Client, tournamentID, matchID string) []string {
	channels := []string{TournamentChannel(tournamentID)}
	if matchID != "" {
		channels = append(channels, g.matchChannel(ctx, tournamentID, matchID))
	}
	for _, ch := range channels {
		g.router.Subscribe(c, ch)
	}
	return channels
}

func (g *SocketGateway) handle(c *Client, raw []byte) {
	var in socketInbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
		c.reply(models.EventError, errorPayload{Error: "malformed message", Code: "bad_request"})
		return
	}
	if in.Type == SocketPing {
		c.reply(models.EventPong, nil)
		return
	}

	var req socketRequest
	if len(in.Payload) > 0 && string(in.Payload) != "null" {
		if err := json.Unmarshal(in.Payload, &req); err != nil {
			c.reply(models.EventError, errorPayload{Event: in.Type, Error: "malformed payload: " + err.Error(), Code: "bad_request"})
			return
		}
	}

	data, err := g.dispatch(context.Background(), c, in.Type, req)
	if err != nil {
		c.reply(models.EventError, errorPayload{Event: in.Type, Error: err.Error(), Code: errorCode(err)})
		return
	}
	c.reply(models.EventAck, ackPayload{Event: in.Type, Data: data})
}

func (g *SocketGateway) dispatch(ctx context.Context, c *Client, kind string, req socketRequest) (any, error) {
	switch kind {
	case SocketSubscribe:
		if req.TournamentID == "" {
			return nil, errMissingTournament
		}
		return map[string][]string{"channels": g.subscribe(ctx, c, req.TournamentID, req.MatchID)}, nil

	case SocketUnsubscribe:
		if req.TournamentID == "" {
			return nil, errMissingTournament
		}
		// Без matchId отписка от всего турнира, иначе только от матча.
		var ch string
		if req.MatchID != "" {
			ch = g.matchChannel(ctx, req.TournamentID, req.MatchID)
		} else {
			ch = TournamentChannel(req.TournamentID)
		}
		g.router.Unsubscribe(c, ch)
		return channelPayload{Channel: ch}, nil

	case SocketMatchResult:
		input := req.MatchResultInput
		if input.Source == "" {
			input.Source = TransportSocket
		}
		return g.tournaments.SubmitResult(ctx, req.TournamentID, req.MatchID, input)

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", services.ErrValidationFailed, kind)
	}
}
