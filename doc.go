// The Wakama anchor SDK for Go publishes agricultural sensor batches to IPFS,
// anchors each batch digest on the Hedera public ledger and audits earlier
// publishes against public IPFS gateways.
//
// # Packages
//
//   - hashstore: SHA-256 digests of batch files
//   - retry: bounded exponential backoff shared by the network stages
//   - pinning: Pinata pinFileToIPFS client
//   - anchor: memo anchoring via Hedera topic messages or self-transfers
//   - mirror: Hedera mirror node REST client used for confirmation and readback
//   - verify: gateway fetch and content integrity checks
//   - receipts: receipt files, the daily audit log and the dashboard snapshot
//   - batch: ingest batch discovery and the demo simulator
//   - publish: the end-to-end publish pipeline
//
// The wakama-anchor command in cmd/wakama-anchor wires these together.
//
// # Installation
//
//	go get github.com/wakama-oracle/anchor-sdk-go@latest
package anchor_sdk_go
