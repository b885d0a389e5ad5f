package stub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"solana-share-vault/internal/solana"
)

// ErrNotFound is returned when an account is not present in the stub.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient over an in-memory account map.
type RPCClient struct {
	mu       sync.RWMutex
	Accounts map[solana.PublicKey]*solana.AccountInfo
	Slot     int64

	calls sync.Map // method name -> *atomic.Int64
}

func (c *RPCClient) record(method string) {
	n, _ := c.calls.LoadOrStore(method, new(atomic.Int64))
	n.(*atomic.Int64).Add(1)
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int64 {
	n, ok := c.calls.Load(method)
	if !ok {
		return 0
	}
	return n.(*atomic.Int64).Load()
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[solana.PublicKey]*solana.AccountInfo),
		Slot:     1,
	}
}

// SetAccount stores raw account data owned by owner.
func (c *RPCClient) SetAccount(addr, owner solana.PublicKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[addr] = &solana.AccountInfo{
		Slot:     c.Slot,
		Lamports: 1,
		Owner:    owner,
		Data:     data,
	}
}

// SetTokenAccount stores an SPL token account.
func (c *RPCClient) SetTokenAccount(acct *solana.TokenAccount) {
	data, _ := acct.MarshalBinary()
	c.SetAccount(acct.Address, solana.TokenProgramID, data)
}

// SetMint stores an SPL mint.
func (c *RPCClient) SetMint(m *solana.Mint) {
	data, _ := m.MarshalBinary()
	c.SetAccount(m.Address, solana.TokenProgramID, data)
}

// GetAccountInfo returns the stored account or nil when absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey solana.PublicKey) (*solana.AccountInfo, error) {
	c.record("getAccountInfo")
	return c.account(pubkey), nil
}

func (c *RPCClient) account(pubkey solana.PublicKey) *solana.AccountInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil
	}
	infoCopy := *info
	infoCopy.Data = append([]byte(nil), info.Data...)
	return &infoCopy
}

// GetTokenAccountBalance decodes the stored token account.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account solana.PublicKey) (*solana.TokenAmount, error) {
	c.record("getTokenAccountBalance")
	info := c.account(account)
	if info == nil {
		return nil, ErrNotFound
	}
	acct, err := solana.DecodeTokenAccount(info.Data)
	if err != nil {
		return nil, err
	}
	return &solana.TokenAmount{Slot: info.Slot, Amount: acct.Amount}, nil
}

// GetTokenSupply decodes the stored mint.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint solana.PublicKey) (*solana.TokenAmount, error) {
	c.record("getTokenSupply")
	info := c.account(mint)
	if info == nil {
		return nil, ErrNotFound
	}
	m, err := solana.DecodeMint(info.Data)
	if err != nil {
		return nil, err
	}
	return &solana.TokenAmount{Slot: info.Slot, Amount: m.Supply, Decimals: m.Decimals}, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.record("getSlot")
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Slot, nil
}

var _ solana.RPCClient = (*RPCClient)(nil)
