package paxos

import "github.com/paxoslabs/engine/internal/transport"

// majority returns floor(n/2)+1, the quorum size for n Accepters.
func majority(n int) int {
	return n/2 + 1
}

// ballotSeed sorts proposers lexicographically and returns self's index
// in that order (its ballot seed) together with the full sorted slice.
// Seeds partition the ballot space modulo the proposer count, so ballots
// from distinct proposers never collide. The smallest-indexed proposer
// is the leader.
func ballotSeed(self transport.Address, proposers []transport.Address) (seed int64, sorted []transport.Address) {
	sorted = transport.SortAddresses(proposers)
	for i, addr := range sorted {
		if addr == self {
			return int64(i), sorted
		}
	}
	return 0, sorted
}

// leader returns the lexicographically smallest proposer address.
func leader(sorted []transport.Address) transport.Address {
	return sorted[0]
}
