package sdk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/wallet"
)

// MaxTxPageSize caps the limit of GetWalletTransactionList.
const MaxTxPageSize = 100

// GetWalletTransactionList returns up to limit entries of the active user's
// wallet history starting at offset start, oldest first. A start past the
// end yields an empty page.
func (s *Sdk) GetWalletTransactionList(ctx context.Context, pin cryptoutils.EncryptionPin, start, limit int) (*interfaces.WalletTxInfoList, error) {
	const op = "get_wallet_transaction_list"
	if start < 0 || limit < 1 || limit > MaxTxPageSize {
		return nil, wrap(op, fmt.Errorf("%w: start %d, limit %d (1..%d)", ErrInvalidArgument, start, limit, MaxTxPageSize))
	}

	user, password, err := s.credentials(ctx, pin)
	if err != nil {
		return nil, wrap(op, err)
	}
	password.Zero()

	txs := user.WalletTransactions
	page := &interfaces.WalletTxInfoList{
		Transactions: []interfaces.WalletTxInfo{},
		Start:        start,
		Limit:        limit,
		Total:        len(txs),
	}
	if start < len(txs) {
		end := min(start+limit, len(txs))
		page.Transactions = append(page.Transactions, txs[start:end]...)
	}
	return page, nil
}

// SendAmount hands a transfer from the wallet's current address on the
// selected network to the transaction collaborator and records the result
// in the user's history.
//
// If the transfer was submitted but recording it fails, both the TxInfo and
// the error are returned. The transfer is already out and must not be
// retried.
func (s *Sdk) SendAmount(ctx context.Context, pin cryptoutils.EncryptionPin, address, amount string, data []byte) (interfaces.TxInfo, error) {
	const op = "send_amount"
	if s.submitter == nil {
		return interfaces.TxInfo{}, wrap(op, fmt.Errorf("%w: transaction submitter", ErrNotConfigured))
	}
	network, err := s.currentNetwork()
	if err != nil {
		return interfaces.TxInfo{}, wrap(op, err)
	}
	if err := wallet.ValidateAddress(network, address); err != nil {
		return interfaces.TxInfo{}, wrap(op, err)
	}
	if err := validateAmount(amount, network.Decimals); err != nil {
		return interfaces.TxInfo{}, wrap(op, err)
	}

	username, password, err := s.walletCredentials(ctx, pin)
	if err != nil {
		return interfaces.TxInfo{}, wrap(op, err)
	}
	defer password.Zero()

	var from string
	err = s.wallets.WithOpenWallet(ctx, username, pin, password, func(b *wallet.Borrow) error {
		var err error
		from, err = b.Wallet().CurrentAddress(network)
		return err
	})
	if err != nil {
		return interfaces.TxInfo{}, wrap(op, err)
	}

	info, err := s.submitter.SubmitTransaction(ctx, interfaces.Transaction{
		Network:  network,
		From:     from,
		To:       address,
		Amount:   amount,
		Data:     data,
		Username: username,
	})
	if err != nil {
		return interfaces.TxInfo{}, wrap(op, external(err))
	}

	date := info.Date
	if date.IsZero() {
		date = s.now()
	}
	record := interfaces.WalletTxInfo{
		Date:          date.UTC(),
		BlockID:       info.BlockID,
		TransactionID: info.TransactionID,
		Receiver:      address,
		Amount:        amount,
		Network:       network.ID,
		Status:        info.Status,
		ExplorerURL:   info.ExplorerURL,
	}
	if record.ExplorerURL == "" && network.BlockExplorerURL != "" {
		record.ExplorerURL = network.BlockExplorerURL + info.TransactionID
	}
	if err := s.users.AppendWalletTransaction(ctx, username, record); err != nil {
		// the transfer is already out; report it and surface the bookkeeping failure
		s.log.Error("failed to record submitted transaction", slog.String("username", username), slog.String("tx", info.TransactionID), "err", err)
		return info, wrap(op, err)
	}

	s.log.Info("transaction submitted", slog.String("username", username), slog.String("network", network.ID), slog.String("tx", info.TransactionID))
	return info, nil
}
