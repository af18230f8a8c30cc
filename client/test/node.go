package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"polycry.pt/poly-go/sync"
)

// RPCError is a JSON-RPC error object returned by a Handler.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler answers one JSON-RPC method. A nil result with a nil error is
// encoded as null.
type Handler func(params []json.RawMessage) (interface{}, *RPCError)

// Result returns a Handler that always answers v.
func Result(v interface{}) Handler {
	return func([]json.RawMessage) (interface{}, *RPCError) { return v, nil }
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// Node is a JSON-RPC endpoint over HTTP answering from fixed handlers.
// Methods without a handler fail with -32601. Every request is recorded.
type Node struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    []string
}

// NewNode starts a Node that is closed when the test ends.
func NewNode(t testing.TB, handlers map[string]Handler) *Node {
	n := &Node{handlers: handlers}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Close)
	return n
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.calls = append(n.calls, req.Method)
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = RPCError{Code: -32601, Message: "method not found"}
	} else if result, rerr := h(req.Params); rerr != nil {
		resp["error"] = rerr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Calls returns the methods requested so far, in order.
func (n *Node) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// Count returns how often method was requested.
func (n *Node) Count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, c := range n.calls {
		if c == method {
			count++
		}
	}
	return count
}
