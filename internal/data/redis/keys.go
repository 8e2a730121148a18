// Package redis implements the key-value store repositories.
//
// Key layout:
//
//	users:{identity}           -> account id
//	user-id                    -> account id counter
//	wallets:{id}               -> hash identity, address, sealed_key, created_at
//	subreddits                 -> set of allow-listed channels
//	processed-events:{id}      -> idempotency marker
//	transaction-id             -> transaction id counter
//	transaction:{id}           -> hash of a finalized transaction
//	tips, withdrawals          -> sorted sets of transaction ids scored by submission time (ms)
//	pending-transactions       -> hash chain tx id -> in-flight transaction JSON
//	command-id                 -> audit command id counter
package redis

import (
	"strconv"
)

const (
	keyUserIDCounter        = "user-id"
	keyTransactionIDCounter = "transaction-id"
	keyCommandIDCounter     = "command-id"
	keyChannels             = "subreddits"
	keyTips                 = "tips"
	keyWithdrawals          = "withdrawals"
	keyPending              = "pending-transactions"
)

func userKey(identity string) string {
	return "users:" + identity
}

func walletKey(id uint64) string {
	return "wallets:" + strconv.FormatUint(id, 10)
}

func markerKey(eventID string) string {
	return "processed-events:" + eventID
}

func transactionKey(id uint64) string {
	return "transaction:" + strconv.FormatUint(id, 10)
}
