package domain

import "time"

const (
	// CreatorSharePercent and TreasurySharePercent are taken from the escrow
	// balance at settlement; the remainder goes to the pool.
	CreatorSharePercent  = 10
	TreasurySharePercent = 10
)

type Settlement struct {
	ListID         string    `json:"list_id"`
	DecryptedCount uint64    `json:"decrypted_count"`
	Total          uint64    `json:"total"`
	CreatorShare   uint64    `json:"creator_share"`
	TreasuryShare  uint64    `json:"treasury_share"`
	PoolShare      uint64    `json:"pool_share"`
	SettledAt      time.Time `json:"settled_at"`
}

// SplitRewards divides total into creator, treasury and pool shares.
// creator == treasury == floor(total*10/100) and the three always sum to total.
func SplitRewards(total uint64) (creator, treasury, pool uint64) {
	// floor(total*p/100) computed without the intermediate product overflowing
	creator = total/100*CreatorSharePercent + total%100*CreatorSharePercent/100
	treasury = total/100*TreasurySharePercent + total%100*TreasurySharePercent/100
	pool = total - creator - treasury
	return creator, treasury, pool
}

type ReconcileReport struct {
	Scanned   int      `json:"scanned"`
	Indexed   int      `json:"indexed"`
	Repaired  []string `json:"repaired"`
	Malformed []string `json:"malformed"`
}
