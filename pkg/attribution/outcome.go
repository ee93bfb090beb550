package attribution

// UnavailableReason names why a committee could not be resolved. The set is
// closed: anything not listed here is a transient error and is retried, never
// recorded as an outcome.
type UnavailableReason string

const (
	ReasonStatePruned  UnavailableReason = "state_pruned"
	ReasonUnknownBlock UnavailableReason = "unknown_block"
	ReasonNoSlotDigest UnavailableReason = "no_slot_digest"
)

// CommitteeOutcome is the result of a committee lookup: either the ordered
// authority list, or a permanent reason it cannot be obtained. Unavailable
// outcomes are never cached so a later re-sync against an archive node can
// still succeed.
type CommitteeOutcome struct {
	Authorities []string
	Reason      UnavailableReason
}

func (o CommitteeOutcome) Available() bool {
	return o.Reason == ""
}
