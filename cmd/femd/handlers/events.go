package handlers

import (
	"context"

	"github.com/labstack/echo/v4"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/opencatalog/fem/pkg/events/stream"
)

// WatchAcksHandler upgrades to a websocket and streams every published
// acknowledgement to the client, as JSON text messages, until the
// client goes away or the server shuts down.
func WatchAcksHandler(hub *stream.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		defer conn.CloseNow()

		ctx := c.Request().Context()
		acks, cancel := hub.Subscribe()
		defer cancel()

		// surface client-side closes; we never expect reads.
		readCtx, readCancel := context.WithCancel(ctx)
		defer readCancel()
		go func() {
			defer readCancel()
			for {
				if _, _, err := conn.Read(readCtx); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-readCtx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			case ack := <-acks:
				if err := wsjson.Write(readCtx, conn, ack); err != nil {
					return nil
				}
			}
		}
	}
}
