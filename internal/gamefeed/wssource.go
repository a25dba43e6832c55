package gamefeed

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSSource consome documentos refinados de um feed push via WebSocket.
// Em caso de desconexão, tenta reconectar automaticamente com backoff.
type WSSource struct {
	URL string
	Log *zap.Logger
}

// Run inicia o loop de conexão e escuta do WebSocket.
func (c *WSSource) Run(ctx context.Context, emit func(raw []byte)) error {
	for {
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping WS feed source")
			return ctx.Err()
		default:
			if err := c.connectAndListen(ctx, emit); err != nil {
				c.Log.Warn("feed connection closed", zap.Error(err))
				time.Sleep(3 * time.Second) // Aguarda antes de tentar reconectar
			}
		}
	}
}

// connectAndListen estabelece a conexão WebSocket e repassa cada mensagem
// recebida (um documento refinado completo) para o serviço de feed.
func (c *WSSource) connectAndListen(ctx context.Context, emit func(raw []byte)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to game feed WS", zap.String("url", c.URL))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		emit(message)
	}
}
