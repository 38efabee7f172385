// Package substratetest provides an in-memory Substrate JSON-RPC node for tests.
package substratetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/rafaelCarinha/tao-dividends/libs/go/substrate"
)

// HeadHash is the block hash the fake node reports.
const HeadHash = "0x2f0c8a1b5e3d47c6a9b8e1f20d3c4b5a69788796a5b4c3d2e1f0a9b8c7d6e5f4"

// Node serves chain_getHead, state_getKeysPaged and state_queryStorageAt
// from an in-memory key space.
type Node struct {
	server *httptest.Server

	mu      sync.Mutex
	storage map[string]string
	failing map[string]*substrate.RPCError

	calls atomic.Int64
}

// NewNode starts a fake node that is shut down with the test.
func NewNode(t *testing.T) *Node {
	t.Helper()
	n := &Node{
		storage: make(map[string]string),
		failing: make(map[string]*substrate.RPCError),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.server.Close)
	return n
}

// URL is the ws:// endpoint of the node.
func (n *Node) URL() string {
	return "ws" + strings.TrimPrefix(n.server.URL, "http")
}

// Put stores a raw key/value pair.
func (n *Node) Put(key, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.storage[substrate.EncodeHex(key)] = substrate.EncodeHex(value)
}

// PutRawKey stores a pre-encoded key, useful for malformed entries.
func (n *Node) PutRawKey(hexKey string, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.storage[hexKey] = substrate.EncodeHex(value)
}

// Fail makes every call to method return err.
func (n *Node) Fail(method string, err *substrate.RPCError) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failing[method] = err
}

// Calls counts JSON-RPC requests served, across all sessions.
func (n *Node) Calls() int64 {
	return n.calls.Load()
}

var upgrader = websocket.Upgrader{}

type rpcRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      uint64              `json:"id"`
	Result  any                 `json:"result,omitempty"`
	Error   *substrate.RPCError `json:"error,omitempty"`
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		n.calls.Add(1)
		result, rpcErr := n.handle(req)
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (n *Node) handle(req rpcRequest) (any, *substrate.RPCError) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if rpcErr, ok := n.failing[req.Method]; ok {
		return nil, rpcErr
	}

	switch req.Method {
	case "chain_getHead":
		return HeadHash, nil
	case "state_getKeysPaged":
		var prefix string
		var count int
		var start *string
		if len(req.Params) < 3 ||
			json.Unmarshal(req.Params[0], &prefix) != nil ||
			json.Unmarshal(req.Params[1], &count) != nil ||
			json.Unmarshal(req.Params[2], &start) != nil {
			return nil, &substrate.RPCError{Code: -32602, Message: "invalid params"}
		}
		return n.keysPaged(prefix, count, start), nil
	case "state_queryStorageAt":
		var keys []string
		if len(req.Params) < 1 || json.Unmarshal(req.Params[0], &keys) != nil {
			return nil, &substrate.RPCError{Code: -32602, Message: "invalid params"}
		}
		changes := make([][2]*string, 0, len(keys))
		for _, k := range keys {
			k := k
			var value *string
			if v, ok := n.storage[k]; ok {
				value = &v
			}
			changes = append(changes, [2]*string{&k, value})
		}
		return []map[string]any{{"block": HeadHash, "changes": changes}}, nil
	default:
		return nil, &substrate.RPCError{Code: -32601, Message: "method not found"}
	}
}

func (n *Node) keysPaged(prefix string, count int, start *string) []string {
	keys := make([]string, 0)
	for k := range n.storage {
		if strings.HasPrefix(k, prefix) && (start == nil || k > *start) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > count {
		keys = keys[:count]
	}
	return keys
}
