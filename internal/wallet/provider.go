package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Methods of the batched-calls wallet API.
const (
	MethodConnect         = "wallet_connect"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodSendCalls       = "wallet_sendCalls"
	MethodGetCallsStatus  = "wallet_getCallsStatus"
)

// BatchVersion is the wallet_sendCalls params version the provider expects.
const BatchVersion = "2.0"

// ZeroValue is the wire form of a zero call value. The field is required on
// every call even when nothing is attached.
const ZeroValue = "0x0"

// Batch statuses reported by wallet_getCallsStatus.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusFailed    = "FAILED"
)

// CodeUserRejected is the provider error code for an explicit rejection in
// the approval prompt.
const CodeUserRejected = 4001

// Call is a single instruction inside an atomic batch.
type Call struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// SendCallsRequest is the single params object of wallet_sendCalls.
type SendCallsRequest struct {
	Version        string `json:"version"`
	AtomicRequired bool   `json:"atomicRequired"`
	ChainID        string `json:"chainId"`
	From           string `json:"from"`
	Calls          []Call `json:"calls"`
}

// Receipt is one on-chain receipt attached to a confirmed batch.
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber,omitempty"`
	GasUsed         string `json:"gasUsed,omitempty"`
	Status          string `json:"status,omitempty"`
}

// CallsStatus is the wallet_getCallsStatus result.
type CallsStatus struct {
	Status   string    `json:"status"`
	Receipts []Receipt `json:"receipts,omitempty"`
}

// AccountPair is the session account pair returned by eth_requestAccounts:
// the delegated spender first, the primary (funding) account second.
type AccountPair struct {
	Delegated string
	Primary   string
}

// Provider is the externally-defined wallet capability surface. Batches are
// atomic: either every call lands on-chain or none does. Rejections are
// surfaced raw; interpreting them is the classifier's job.
type Provider interface {
	Connect(ctx context.Context) error
	RequestAccounts(ctx context.Context) (AccountPair, error)
	SendCalls(ctx context.Context, req SendCallsRequest) (string, error)
	GetCallsStatus(ctx context.Context, batchID string) (CallsStatus, error)
}

// NewSendCalls assembles a batch request with the protocol defaults applied.
func NewSendCalls(chainID uint64, from string, calls ...Call) SendCallsRequest {
	return SendCallsRequest{
		Version:        BatchVersion,
		AtomicRequired: true,
		ChainID:        hexutil.EncodeUint64(chainID),
		From:           from,
		Calls:          calls,
	}
}

// RPCError is a JSON-RPC error object passed through unmodified from the
// provider.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet rpc error %d: %s", e.Code, e.Message)
}
