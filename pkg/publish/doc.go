// Package publish runs one publish: digest a batch, pin it, check the pinned
// copy, anchor the memo, query confirmation and record the receipt.
package publish
