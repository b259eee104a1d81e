package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned by a UserRepository for an unknown username.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned by a UserRepository when creating a duplicate user.
	ErrUserExists = errors.New("user already exists")
)

// TransactionSubmitter builds, signs and broadcasts a transfer. Retries and
// timeouts belong to the implementation.
type TransactionSubmitter interface {
	SubmitTransaction(ctx context.Context, tx Transaction) (TxInfo, error)
}

// KycProvider is the exchange partner's identity verification service.
type KycProvider interface {
	FetchKycStatus(ctx context.Context, username string) (ViviswapKycStatus, error)
}

// UserRepository persists UserEntity records.
type UserRepository interface {
	Create(ctx context.Context, user *UserEntity) error
	Get(ctx context.Context, username string) (*UserEntity, error)
	Update(ctx context.Context, user *UserEntity) error
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]string, error)

	// AppendWalletTransaction adds tx to the user's history.
	AppendWalletTransaction(ctx context.Context, username string, tx WalletTxInfo) error
}
