// Package ledger maps the curation data model onto ledger store keys. All
// values are UTF-8 JSON.
package ledger

import "github.com/vncsmyrnk/curation/internal/core/domain"

const (
	IndexKey      = domain.ListIndexKey
	listPrefix    = domain.ListRecordPrefix
	tallyPrefix   = "tally_"
	escrowPrefix  = "escrow_"
	rewardPrefix  = "reward_"
	housePrefix   = "house_"
	requestPrefix = "decrypt_"
	walletPrefix  = "wallet_"
)

func ListKey(id string) string { return domain.ListRecordKey(id) }

func TallyKey(listID string) string { return tallyPrefix + listID }

func EscrowKey(listID string) string { return escrowPrefix + listID }

func RewardKey(account string) string { return rewardPrefix + account }

// HouseKey holds the treasury and pool balances, out of reach of RewardKey.
func HouseKey(account string) string { return housePrefix + account }

func RequestKey(id string) string { return requestPrefix + id }

func WalletKey(account string) string { return walletPrefix + account }
