package store

// partitionState names the documented per-partition lifecycle from
// spec §4.3: a partition starts empty, fills as writes land, reaches its
// quota and begins evicting to stay under it, and can be forced back to
// empty by an administrative clear.
type partitionState int

const (
	stateEmpty partitionState = iota
	stateFilling
	stateAtQuota
	stateEvicting
)

func (s partitionState) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateFilling:
		return "filling"
	case stateAtQuota:
		return "at_quota"
	case stateEvicting:
		return "evicting"
	default:
		return "unknown"
	}
}
