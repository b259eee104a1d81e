package interfaces

import (
	"fmt"
	"time"
)

// UserEntity is the persisted record of a wallet user. Secret material never
// appears here in clear: EncryptedPassword is sealed under a pin-derived key
// and the wallet itself lives in the user's vault file.
type UserEntity struct {
	Username           string         `json:"username"`
	EncryptedPassword  []byte         `json:"-"`
	Salt               []byte         `json:"-"`
	KycStatus          KycStatus      `json:"kyc_status"`
	WalletTransactions []WalletTxInfo `json:"wallet_transactions"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// HasPassword reports whether a wallet password has been set for the user.
func (u *UserEntity) HasPassword() bool {
	return len(u.EncryptedPassword) > 0
}

// NetworkType selects the address derivation scheme of a network.
type NetworkType string

const (
	NetworkTypeEVM  NetworkType = "evm"
	NetworkTypeUTXO NetworkType = "utxo"
)

// Network is one configured blockchain endpoint.
type Network struct {
	ID               string      `mapstructure:"id" json:"id"`
	Name             string      `mapstructure:"name" json:"name"`
	Type             NetworkType `mapstructure:"type" json:"type"`
	Currency         string      `mapstructure:"currency" json:"currency"`
	Decimals         uint8       `mapstructure:"decimals" json:"decimals"`
	CoinType         uint32      `mapstructure:"coin_type" json:"coin_type"`
	ChainID          uint64      `mapstructure:"chain_id" json:"chain_id,omitempty"`
	Chain            string      `mapstructure:"chain" json:"chain,omitempty"`
	NodeURL          string      `mapstructure:"node_url" json:"node_url"`
	BlockExplorerURL string      `mapstructure:"block_explorer_url" json:"block_explorer_url,omitempty"`
}

func (n Network) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("network: empty id")
	}
	switch n.Type {
	case NetworkTypeEVM:
		if n.ChainID == 0 {
			return fmt.Errorf("network %s: evm networks need a chain_id", n.ID)
		}
	case NetworkTypeUTXO:
		switch n.Chain {
		case "mainnet", "testnet", "regtest", "signet":
		default:
			return fmt.Errorf("network %s: unknown utxo chain %q", n.ID, n.Chain)
		}
	default:
		return fmt.Errorf("network %s: unknown type %q", n.ID, n.Type)
	}
	if n.Currency == "" {
		return fmt.Errorf("network %s: empty currency", n.ID)
	}
	return nil
}

// Transaction is an outgoing transfer handed to a TransactionSubmitter.
// Amount is a decimal string in whole currency units.
type Transaction struct {
	Network  Network `json:"network"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Amount   string  `json:"amount"`
	Data     []byte  `json:"data,omitempty"`
	Username string  `json:"username"`
}

// TxInfo is what the chain collaborator reports back for a submitted
// transaction.
type TxInfo struct {
	TransactionID string    `json:"transaction_id"`
	BlockID       string    `json:"block_id,omitempty"`
	Status        string    `json:"status"`
	Date          time.Time `json:"date"`
	ExplorerURL   string    `json:"explorer_url,omitempty"`
}

// WalletTxInfo is one entry in a user's wallet transaction history.
type WalletTxInfo struct {
	Date          time.Time `json:"date"`
	BlockID       string    `json:"block_id,omitempty"`
	TransactionID string    `json:"transaction_id"`
	Receiver      string    `json:"receiver"`
	Incoming      bool      `json:"incoming"`
	Amount        string    `json:"amount"`
	Network       string    `json:"network"`
	Status        string    `json:"status"`
	ExplorerURL   string    `json:"explorer_url,omitempty"`
}

// WalletTxInfoList is one page of wallet transactions.
type WalletTxInfoList struct {
	Transactions []WalletTxInfo `json:"transactions"`
	Start        int            `json:"start"`
	Limit        int            `json:"limit"`
	Total        int            `json:"total"`
}

// KycStatus is the last KYC state recorded for a user.
type KycStatus string

const (
	KycUndefined KycStatus = ""
	KycPending   KycStatus = "pending"
	KycVerified  KycStatus = "verified"
	KycRejected  KycStatus = "rejected"
)

// ViviswapVerificationStatus is the exchange partner's verification verdict.
type ViviswapVerificationStatus string

const (
	ViviswapVerified          ViviswapVerificationStatus = "verified"
	ViviswapUnverified        ViviswapVerificationStatus = "unverified"
	ViviswapPartiallyVerified ViviswapVerificationStatus = "partially_verified"
)

// ViviswapKycStatus is the KYC record returned by the exchange collaborator.
type ViviswapKycStatus struct {
	FullName           string                     `json:"full_name"`
	SubmissionStep     string                     `json:"submission_step"`
	VerifiedStep       string                     `json:"verified_step"`
	VerificationStatus ViviswapVerificationStatus `json:"verification_status"`
	MonthlyLimitEur    float64                    `json:"monthly_limit_eur"`
}

// KycStatus maps the partner verdict onto the locally recorded status.
// Partial verification is recorded as pending.
func (s ViviswapKycStatus) KycStatus() KycStatus {
	switch s.VerificationStatus {
	case ViviswapVerified:
		return KycVerified
	case ViviswapPartiallyVerified, ViviswapUnverified:
		return KycPending
	default:
		return KycUndefined
	}
}
