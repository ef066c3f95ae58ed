// Package core contains the entitlement domain model, the remote access-control
// contract and the reconciliation engine. Transport, storage and command
// adapters depend on this package; core does not depend on them.
package core
