package domain

type VotePath string

const (
	// VoteHomomorphic combines an encrypted increment into the list tally.
	VoteHomomorphic VotePath = "homomorphic"
	// VoteSimple is the demo read-modify-write of totalVotes. Concurrent
	// votes on this path can be lost.
	VoteSimple VotePath = "simple"
)
