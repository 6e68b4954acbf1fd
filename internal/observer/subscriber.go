package observer

import (
	"context"
	"errors"
	"fmt"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"parasited/internal/models"
	"parasited/internal/providers"
	"time"
)

const closeWait = time.Second

// Subscribe reads the change stream at url and merges every notification
// until ctx is done or the authority closes the stream. A cancelled ctx is
// not an error.
func (o *Observer) Subscribe(ctx context.Context, url string) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStateUnknown, err)
	}
	defer ws.Close()
	o.logger.Infof(providers.TypeSync, "Subscribed to %s", url)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWait))
			_ = ws.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrStateUnknown, err)
		}
		var change models.Change
		if err := json.Unmarshal(data, &change); err != nil {
			o.logger.Warnf(providers.TypeSync, "Skipping undecodable change: %s", err)
			continue
		}
		o.Merge(change)
	}
}

// IsStateUnknown reports whether err left the authority's state unknown.
func IsStateUnknown(err error) bool {
	return errors.Is(err, ErrStateUnknown)
}
