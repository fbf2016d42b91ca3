// Package hashstore computes and compares SHA-256 content digests for batch
// documents, both for local files and for bytes fetched from remote gateways.
//
// Digests are lowercase hex strings. File digests are streamed so very large
// documents are never loaded into memory at once.
package hashstore
