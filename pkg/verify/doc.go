// Package verify downloads published content from IPFS gateways and checks it
// against the digest recorded at publish time.
package verify
