package clocksync

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNetworkUnavailable means no local IPv4 address could be determined,
	// so the hello datagram cannot be sent and the session cannot sync.
	ErrNetworkUnavailable = errors.New("network unavailable: no local IPv4 address")

	// ErrNoSyncData means the session ended without a single timestamp
	// datagram. The offset degrades to zero.
	ErrNoSyncData = errors.New("no timestamps received for offset calculation")
)

// MeanOffset returns the arithmetic mean of the differences truncated toward
// zero. Duplicates and reordered samples all count; nothing is filtered.
//
// The mean is taken relative to the first difference so the float sum stays
// small even when the two clocks use unrelated epochs.
func MeanOffset(differences []int64) (int64, error) {
	if len(differences) == 0 {
		return 0, ErrNoSyncData
	}
	pivot := differences[0]
	rel := make([]float64, len(differences))
	for i, d := range differences {
		rel[i] = float64(d - pivot)
	}
	return int64(float64(pivot) + stat.Mean(rel, nil)), nil
}
