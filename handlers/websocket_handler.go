package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-hub/hub"
)

// WebSocketHandler отдаёт оба websocket-шлюза.
// Клиент подключается к /ws/rooms или к /ws/socket?tournamentId=...&matchId=...
type WebSocketHandler struct {
	rooms  *hub.RoomGateway
	socket *hub.SocketGateway
}

func NewWebSocketHandler(rooms *hub.RoomGateway, socket *hub.SocketGateway) *WebSocketHandler {
	return &WebSocketHandler{
		rooms:  rooms,
		socket: socket,
	}
}

// ServeRooms обрабатывает GET /ws/rooms
func (h *WebSocketHandler) ServeRooms(w http.ResponseWriter, r *http.Request) {
	h.rooms.ServeHTTP(w, r)
}

// ServeSocket обрабатывает GET /ws/socket
func (h *WebSocketHandler) ServeSocket(w http.ResponseWriter, r *http.Request) {
	h.socket.ServeHTTP(w, r)
}
