// Package common holds process-wide helpers shared by the binaries and
// packages of the wallet kernel: logger construction and build metadata.
package common

// Version is overridden at build time with -ldflags "-X ...common.Version=...".
var Version = "dev"

// PackageName is used as the Prometheus namespace and default log service.
const PackageName = "wallet_kernel"
