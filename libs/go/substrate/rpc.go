package substrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Conn is a single JSON-RPC session with a Substrate node.
// Calls are serialized; open one Conn per unit of work.
type Conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	nextID atomic.Uint64
}

// Dial opens a WebSocket session to the node at url.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Close terminates the session.
func (c *Conn) Close() error {
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.ws.Close()
}

// Call issues method with params and decodes the result into out.
func (c *Conn) Call(ctx context.Context, method string, params []any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if params == nil {
		params = []any{}
	}
	id := c.nextID.Add(1)

	deadline, _ := ctx.Deadline()
	_ = c.ws.SetWriteDeadline(deadline)
	_ = c.ws.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := c.ws.WriteJSON(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("%s: write: %w", method, err)
	}

	for {
		var resp response
		if err := c.ws.ReadJSON(&resp); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%s: %w", method, ctxErr)
			}
			return fmt.Errorf("%s: read: %w", method, err)
		}
		// Subscription notifications carry no id.
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	}
}

// HeadBlock returns the hash of the current best block.
func (c *Conn) HeadBlock(ctx context.Context) (string, error) {
	var hash string
	if err := c.Call(ctx, "chain_getHead", nil, &hash); err != nil {
		return "", err
	}
	if hash == "" {
		return "", errors.New("chain_getHead: empty block hash")
	}
	return hash, nil
}
