package sdk

import (
	"context"

	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockTransactionSubmitter mocks interfaces.TransactionSubmitter
type MockTransactionSubmitter struct {
	mock.Mock
}

func (m *MockTransactionSubmitter) SubmitTransaction(ctx context.Context, tx interfaces.Transaction) (interfaces.TxInfo, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(interfaces.TxInfo), args.Error(1)
}

// MockKycProvider mocks interfaces.KycProvider
type MockKycProvider struct {
	mock.Mock
}

func (m *MockKycProvider) FetchKycStatus(ctx context.Context, username string) (interfaces.ViviswapKycStatus, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(interfaces.ViviswapKycStatus), args.Error(1)
}
