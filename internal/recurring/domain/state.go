package domain

import (
	"fmt"
	"time"
)

// ClaimState classifies a claim row for the charge routine. Every caller
// must switch over all values.
type ClaimState int

const (
	ClaimInvalid ClaimState = iota
	ClaimNoRow
	ClaimPendingFresh
	ClaimPendingStale
	ClaimCharged
	ClaimFailedFresh
	ClaimFailedStale
)

func (s ClaimState) String() string {
	switch s {
	case ClaimNoRow:
		return "no_row"
	case ClaimPendingFresh:
		return "pending_fresh"
	case ClaimPendingStale:
		return "pending_stale"
	case ClaimCharged:
		return "charged"
	case ClaimFailedFresh:
		return "failed_fresh"
	case ClaimFailedStale:
		return "failed_stale"
	default:
		return fmt.Sprintf("invalid(%d)", int(s))
	}
}

// Assess classifies claim at now. A row whose updated_at is at least ttl old
// is stale. Rows with an unknown status are ClaimInvalid.
func Assess(claim *Claim, now time.Time, ttl time.Duration) ClaimState {
	if claim == nil {
		return ClaimNoRow
	}
	stale := now.Sub(claim.UpdatedAt) >= ttl
	switch claim.Status {
	case StatusCharged:
		return ClaimCharged
	case StatusPending:
		if stale {
			return ClaimPendingStale
		}
		return ClaimPendingFresh
	case StatusFailed:
		if stale {
			return ClaimFailedStale
		}
		return ClaimFailedFresh
	default:
		return ClaimInvalid
	}
}
