/*
Package httpserver exposes a wallet session over HTTP for local clients such
as a desktop shell or a mobile bridge.

Every wallet route maps one-to-one onto an sdk.Sdk operation. The pin travels
in the X-Wallet-Pin header; passwords, mnemonics and shares travel in JSON
bodies and are zeroed once the handler returns. Errors are reported as

	{"error": "<op>: <kind>: <cause>", "kind": "<kind>"}

with the status derived from the error kind:

	validation  400
	not_found   404
	conflict    409
	crypto      401 for a wrong pin or password, 500 otherwise
	share       422
	state       412
	external    502
	corruption  500
	io          500

# Routes

	POST   /api/users                    create a user
	DELETE /api/user                     delete the active user and wallet
	POST   /api/session                  select the active user
	DELETE /api/session                  log out
	PUT    /api/session/token            install a backend access token
	GET    /api/wallet/password          is a password set
	PUT    /api/wallet/password          set or change the password
	POST   /api/wallet/pin/verify        check the pin
	PUT    /api/wallet/pin               change the pin
	POST   /api/wallet                   create from a new or given mnemonic
	DELETE /api/wallet                   delete the wallet
	POST   /api/wallet/shares            split into text shares
	POST   /api/wallet/shares/guardians  split and seal to guardian keys
	POST   /api/wallet/recovery/shares   submit one share for recovery
	DELETE /api/wallet/recovery          discard submitted shares
	POST   /api/wallet/backup            store an encrypted backup
	POST   /api/wallet/restore           restore a backup by id
	GET    /api/networks                 list networks
	PUT    /api/network                  select a network
	POST   /api/wallet/address           derive the next address
	GET    /api/wallet/transactions      page through history
	POST   /api/wallet/send              send an amount
	GET    /api/kyc                      refresh KYC status

Share recovery is incremental: shares are posted one at a time, answered with
202 and the number still missing, and the wallet is created with 201 by the
request that reaches the threshold.

The server also carries /livez, /readyz, /drain and /undrain for load
balancer integration, and optionally /debug/pprof.
*/
package httpserver
