// Package shared holds the ledger plumbing common to the anchoring and
// confirmation code: network normalization, Hedera client construction and
// operator (payer account and signing key) resolution.
//
// Operator credentials are resolved from a config.Source on each call so a
// rotated key or wallet file is picked up without restarting the process.
package shared
