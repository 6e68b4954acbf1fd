package controllers

import (
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"net/http"
	"parasited/internal/providers"
	"parasited/internal/services"
	"parasited/internal/structures"
	"time"
)

const (
	writeWait           = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

// ChangesController streams every persisted change to websocket clients.
type ChangesController struct {
	hub          services.ChangeHubInterface
	logger       providers.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

func NewChangesController(conf *structures.Config, hub services.ChangeHubInterface, logger providers.Logger) *ChangesController {
	ping := conf.Sync.PingInterval
	if ping <= 0 {
		ping = defaultPingInterval
	}
	return &ChangesController{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			// Observers run inside pages of another origin.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		pingInterval: ping,
	}
}

func (cc *ChangesController) Stream(w http.ResponseWriter, r *http.Request) {
	ws, err := cc.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cc.logger.Warnf(providers.TypeSync, "Failed to upgrade change stream: %s", err)
		return
	}
	defer ws.Close()

	sub := cc.hub.Subscribe()
	defer cc.hub.Unsubscribe(sub.ID)
	cc.logger.Infof(providers.TypeSync, "Subscriber %s connected from %s", sub.ID, r.RemoteAddr)

	readDeadline := 2 * cc.pingInterval
	_ = ws.SetReadDeadline(time.Now().Add(readDeadline))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readDeadline))
	})

	// Clients never send data; reading only detects disconnects and pongs.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(cc.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			cc.logger.Infof(providers.TypeSync, "Subscriber %s disconnected", sub.ID)
			return
		case change, ok := <-sub.C:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				cc.logger.Errorf(providers.TypeSync, "Unable to encode change of %s: %s", change.Key, err)
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				cc.logger.Warnf(providers.TypeSync, "Dropping subscriber %s: %s", sub.ID, err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				cc.logger.Warnf(providers.TypeSync, "Dropping subscriber %s after failed ping: %s", sub.ID, err)
				return
			}
		}
	}
}
