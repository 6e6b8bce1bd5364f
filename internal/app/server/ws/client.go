package ws

import (
	"context"
	"errors"
	"sync"
)

type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	connID string
	userID string
	out    chan []byte
	once   sync.Once
}

func NewClient(
	parent context.Context,
	ws *WebSocket,
	connID, userID string,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		connID: connID,
		userID: userID,
		out:    make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ConnID() string { return c.connID }
func (c *RuntimeClient) UserID() string { return c.userID }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	// The out channel is never closed, so a Send racing Close can at worst
	// enqueue a frame nobody drains; it must never panic. Broadcasts reach
	// clients that are mid-teardown.
	if c.ctx.Err() != nil {
		return errors.New("client closed")
	}
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return errors.New("client closed")
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			_ = c.ws.WriteMessage(data)
		}
	}
}
