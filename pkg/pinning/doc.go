// Package pinning uploads batch documents to an IPFS pinning service and
// returns the content identifier it assigns.
package pinning
