package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeAccount streams changes to a single account.
	SubscribeAccount(ctx context.Context, account PublicKey) (<-chan AccountNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// AccountNotification represents an accountSubscribe message.
type AccountNotification struct {
	Account  PublicKey
	Slot     int64
	Lamports uint64
	Owner    PublicKey
	Data     []byte
}
