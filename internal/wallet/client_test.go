package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

type rpcCall struct {
	Jsonrpc string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// newRPCServer returns a test server that dispatches on method name and
// records every request it sees.
func newRPCServer(t *testing.T, handlers map[string]func(params []json.RawMessage) (any, *RPCError)) (*httptest.Server, *[]rpcCall) {
	t.Helper()
	var seen []rpcCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		seen = append(seen, call)
		h, ok := handlers[call.Method]
		if !ok {
			t.Errorf("unexpected method %q", call.Method)
			return
		}
		result, rpcErr := h(call.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": 1}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestSendCallsWireFormat(t *testing.T) {
	var gotReq SendCallsRequest
	srv, _ := newRPCServer(t, map[string]func([]json.RawMessage) (any, *RPCError){
		MethodSendCalls: func(params []json.RawMessage) (any, *RPCError) {
			if len(params) != 1 {
				t.Errorf("params length = %d, want 1", len(params))
				return "b1", nil
			}
			if err := json.Unmarshal(params[0], &gotReq); err != nil {
				t.Errorf("unmarshal params: %v", err)
			}
			return "b1", nil
		},
	})

	c := NewClient(srv.URL, zerolog.Nop())
	req := NewSendCalls(84532, "0xsub", Call{To: "0xtoken", Data: "0xa9059cbb", Value: ZeroValue})

	id, err := c.SendCalls(context.Background(), req)
	if err != nil {
		t.Fatalf("SendCalls error: %v", err)
	}
	if id != "b1" {
		t.Fatalf("batch id = %q, want b1", id)
	}
	if gotReq.Version != BatchVersion {
		t.Fatalf("version = %q, want %q", gotReq.Version, BatchVersion)
	}
	if !gotReq.AtomicRequired {
		t.Fatal("atomicRequired not set")
	}
	if gotReq.ChainID != "0x14a34" {
		t.Fatalf("chainId = %q, want 0x14a34", gotReq.ChainID)
	}
	if len(gotReq.Calls) != 1 || gotReq.Calls[0].Value != "0x0" {
		t.Fatalf("calls = %+v, want one call with value 0x0", gotReq.Calls)
	}
}

func TestSendCallsObjectResult(t *testing.T) {
	srv, _ := newRPCServer(t, map[string]func([]json.RawMessage) (any, *RPCError){
		MethodSendCalls: func([]json.RawMessage) (any, *RPCError) {
			return map[string]string{"id": "batch-7"}, nil
		},
	})

	c := NewClient(srv.URL, zerolog.Nop())
	id, err := c.SendCalls(context.Background(), NewSendCalls(1, "0xsub"))
	if err != nil {
		t.Fatalf("SendCalls error: %v", err)
	}
	if id != "batch-7" {
		t.Fatalf("batch id = %q, want batch-7", id)
	}
}

func TestSendCallsSurfacesRawRPCError(t *testing.T) {
	srv, _ := newRPCServer(t, map[string]func([]json.RawMessage) (any, *RPCError){
		MethodSendCalls: func([]json.RawMessage) (any, *RPCError) {
			return nil, &RPCError{Code: CodeUserRejected, Message: "User rejected the request"}
		},
	})

	c := NewClient(srv.URL, zerolog.Nop())
	_, err := c.SendCalls(context.Background(), NewSendCalls(1, "0xsub"))
	if err == nil {
		t.Fatal("SendCalls succeeded, want error")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error type = %T, want *RPCError", err)
	}
	if rpcErr.Code != CodeUserRejected {
		t.Fatalf("code = %d, want %d", rpcErr.Code, CodeUserRejected)
	}
}

func TestRequestAccounts(t *testing.T) {
	tests := []struct {
		name     string
		accounts []string
		want     AccountPair
	}{
		{
			name:     "delegated then primary",
			accounts: []string{"0xsub", "0xuniversal"},
			want:     AccountPair{Delegated: "0xsub", Primary: "0xuniversal"},
		},
		{
			name:     "single account serves both roles",
			accounts: []string{"0xonly"},
			want:     AccountPair{Delegated: "0xonly", Primary: "0xonly"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newRPCServer(t, map[string]func([]json.RawMessage) (any, *RPCError){
				MethodRequestAccounts: func([]json.RawMessage) (any, *RPCError) {
					return tc.accounts, nil
				},
			})
			c := NewClient(srv.URL, zerolog.Nop())
			pair, err := c.RequestAccounts(context.Background())
			if err != nil {
				t.Fatalf("RequestAccounts error: %v", err)
			}
			if pair != tc.want {
				t.Fatalf("pair = %+v, want %+v", pair, tc.want)
			}
		})
	}
}

func TestGetCallsStatus(t *testing.T) {
	srv, seen := newRPCServer(t, map[string]func([]json.RawMessage) (any, *RPCError){
		MethodGetCallsStatus: func(params []json.RawMessage) (any, *RPCError) {
			return CallsStatus{
				Status:   StatusConfirmed,
				Receipts: []Receipt{{TransactionHash: "0xdeadbeef"}},
			}, nil
		},
	})

	c := NewClient(srv.URL, zerolog.Nop())
	st, err := c.GetCallsStatus(context.Background(), "b1")
	if err != nil {
		t.Fatalf("GetCallsStatus error: %v", err)
	}
	if st.Status != StatusConfirmed {
		t.Fatalf("status = %q, want %q", st.Status, StatusConfirmed)
	}
	if len(st.Receipts) != 1 || st.Receipts[0].TransactionHash != "0xdeadbeef" {
		t.Fatalf("receipts = %+v", st.Receipts)
	}
	var id string
	if err := json.Unmarshal((*seen)[0].Params[0], &id); err != nil || id != "b1" {
		t.Fatalf("batch id param = %q (%v), want b1", id, err)
	}
}
