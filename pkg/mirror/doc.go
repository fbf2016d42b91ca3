// Package mirror is a small read-only client for the Hedera mirror node REST
// API. The anchoring pipeline uses it to poll transaction confirmation, to map
// a consensus timestamp to its record block number, and to read anchored memo
// payloads back for independent verification.
//
// # Looking up a transaction
//
//	client, err := mirror.NewClient(mirror.Config{Network: "testnet"})
//	tx, err := client.GetTransaction(ctx, "0.0.1234@1700000000.000000001")
//
// A transaction the mirror node has not ingested yet surfaces as a *StatusError
// with Status 404.
package mirror
