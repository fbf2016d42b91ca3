// Package anchor records batch integrity memos on the Hedera ledger and
// reports how far each memo transaction has progressed toward finality.
package anchor
