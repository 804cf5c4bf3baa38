/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"livechat/internal/app/chat"
	"livechat/internal/pkg/logx"
)

// HandleWebSocket upgrades the request, registers the connection as Anonymous and runs its pumps.
// The user joins later through a join event on the socket.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Hub, deps.Controller, conn)

		if err := deps.Hub.Attach(client); err != nil {
			logx.Warn("WebSocket connection rejected: server shutting down.", "conn_id", client.ID())
			closeMessage := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteMessage(websocket.CloseMessage, closeMessage)
			_ = conn.Close()
			return
		}

		deps.Controller.Connect(client.ID())

		logx.Info("WebSocket connection established", "conn_id", client.ID())

		go client.WritePump()

		client.ReadPump()
	}
}
