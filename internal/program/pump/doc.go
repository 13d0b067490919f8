// Package pump implements the bonding-curve launch program: the global
// configuration record, per-mint bonding curves, the guard layer, the
// migration controller and the reserve release engine.
//
// The program runs inside the ledger runtime (internal/blockchain/ledger).
// Instructions and accounts use the Anchor wire format, so the same bytes
// can be produced and parsed by any Anchor client.
package pump
