// Package interfaces holds the types shared by the wallet kernel packages and
// the narrow interfaces through which the kernel reaches its collaborators:
//
//   - UserRepository persists user records.
//   - TransactionSubmitter hands outgoing transfers to the chain layer.
//   - KycProvider queries the exchange partner's KYC state.
//   - StorageBackend stores encrypted backups off-site, content addressed.
//
// Implementations live in repository, storage and the embedding
// application. Tests use testify mocks of these interfaces.
package interfaces
