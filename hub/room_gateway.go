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

// События комнатного шлюза.
const (
	RoomJoinTournament = "join-tournament"
	RoomJoinMatch      = "join-match"
	RoomJoinAuthoring  = "join-authoring"
	RoomLeave          = "leave"
	RoomSubmitResult   = "submit-result"
	RoomHeartbeat      = "heartbeat"
	RoomSaveMatchState = "save-match-state"
	RoomLoadMatchState = "load-match-state"
)

type roomInbound struct {
	Event     string          `json:"event"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data"`
}

type roomOutbound struct {
	Event     string `json:"event"`
	Channel   string `json:"channel,omitempty"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type roomRequest struct {
	TournamentID string                     `json:"tournamentId"`
	MatchID      string                     `json:"matchId"`
	Channel      string                     `json:"channel"`
	Result       *services.MatchResultInput `json:"result"`
	State        json.RawMessage            `json:"state"`
}

func encodeRoom(msg models.Outbound) ([]byte, error) {
	return json.Marshal(roomOutbound{
		Event:     msg.Event,
		Channel:   msg.Channel,
		Data:      msg.Payload,
		Timestamp: msg.Timestamp,
	})
}

// RoomGateway multiplexes named rooms over one websocket per client.
type RoomGateway struct {
	gateway
}

func NewRoomGateway(router *Router, tournaments *services.TournamentService, logger *slog.Logger, allowedOrigins []string) *RoomGateway {
	return &RoomGateway{gateway: newGateway(router, tournaments, logger, allowedOrigins)}
}

func (g *RoomGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := g.accept(w, r, TransportRooms, encodeRoom, g.handle)
	if err != nil {
		g.logger.Warn("Failed to upgrade room connection", slog.Any("error", err))
		return
	}
	g.greet(c)
	g.start(c)
}

func (g *RoomGateway) handle(c *Client, raw []byte) {
	var in roomInbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
		c.reply(models.EventError, errorPayload{Error: "malformed message", Code: "bad_request"})
		return
	}

	var req roomRequest
	if len(in.Data) > 0 && string(in.Data) != "null" {
		if err := json.Unmarshal(in.Data, &req); err != nil {
			c.reply(models.EventError, errorPayload{Event: in.Event, RequestID: in.RequestID, Error: "malformed data: " + err.Error(), Code: "bad_request"})
			return
		}
	}

	data, err := g.dispatch(context.Background(), c, in.Event, req)
	if err != nil {
		c.reply(models.EventError, errorPayload{Event: in.Event, RequestID: in.RequestID, Error: err.Error(), Code: errorCode(err)})
		return
	}
	c.reply(models.EventAck, ackPayload{Event: in.Event, RequestID: in.RequestID, Data: data})
}

func (g *RoomGateway) dispatch(ctx context.Context, c *Client, event string, req roomRequest) (any, error) {
	switch event {
	case RoomJoinTournament:
		if req.TournamentID == "" {
			return nil, errMissingTournament
		}
		ch := TournamentChannel(req.TournamentID)
		g.router.Subscribe(c, ch)
		return channelPayload{Channel: ch}, nil

	case RoomJoinMatch:
		if req.TournamentID == "" || req.MatchID == "" {
			return nil, fmt.Errorf("%w: tournamentId and matchId are required", services.ErrValidationFailed)
		}
		ch := g.matchChannel(ctx, req.TournamentID, req.MatchID)
		g.router.Subscribe(c, ch)
		return channelPayload{Channel: ch}, nil

	case RoomJoinAuthoring:
		if req.TournamentID == "" {
			return nil, errMissingTournament
		}
		ch := AuthoringChannel(req.TournamentID)
		g.router.Subscribe(c, ch)
		return channelPayload{Channel: ch}, nil

	case RoomLeave:
		ch := req.Channel
		switch {
		case ch != "":
		case req.TournamentID != "" && req.MatchID != "":
			ch = g.matchChannel(ctx, req.TournamentID, req.MatchID)
		case req.TournamentID != "":
			ch = TournamentChannel(req.TournamentID)
		default:
			return nil, fmt.Errorf("%w: channel or tournamentId is required", services.ErrValidationFailed)
		}
		g.router.Unsubscribe(c, ch)
		return channelPayload{Channel: ch}, nil

	case RoomSubmitResult:
		if req.Result == nil {
			return nil, fmt.Errorf("%w: result is required", services.ErrValidationFailed)
		}
		input := *req.Result
		if input.Source == "" {
			input.Source = TransportRooms
		}
		return g.tournaments.SubmitResult(ctx, req.TournamentID, req.MatchID, input)

	case RoomHeartbeat:
		if err := g.tournaments.Heartbeat(ctx, req.TournamentID); err != nil {
			return nil, err
		}
		return map[string]string{"tournamentId": req.TournamentID}, nil

	case RoomSaveMatchState:
		if len(req.State) == 0 {
			return nil, fmt.Errorf("%w: state is required", services.ErrValidationFailed)
		}
		st, err := g.tournaments.SaveMatchState(ctx, req.TournamentID, req.MatchID, req.State)
		if err != nil {
			return nil, err
		}
		return map[string]any{"savedAt": st.LastUpdated}, nil

	case RoomLoadMatchState:
		return g.loadMatchState(ctx, req.TournamentID, req.MatchID)

	default:
		return nil, fmt.Errorf("%w: unknown event %q", services.ErrValidationFailed, event)
	}
}
