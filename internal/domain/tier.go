package domain

// Tier is a user's privilege level.
type Tier int

const (
	TierRegular Tier = iota
	TierSuper
	TierAdmin
)

// Unlimited reports whether the tier bypasses the search quota.
func (t Tier) Unlimited() bool { return t == TierSuper || t == TierAdmin }

func (t Tier) String() string {
	switch t {
	case TierSuper:
		return "super"
	case TierAdmin:
		return "admin"
	default:
		return "regular"
	}
}
