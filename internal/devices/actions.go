package devices

// CollectionAction is an action verb accepted on the device collection.
type CollectionAction string

const (
	// ActionSkip sets whether the user may skip OATH at login.
	ActionSkip CollectionAction = "skip"

	// ActionCheck reports whether the user may skip OATH at login.
	ActionCheck CollectionAction = "check"
)

// ParseCollectionAction returns the action named verb. Matching is exact.
func ParseCollectionAction(verb string) (CollectionAction, bool) {
	switch a := CollectionAction(verb); a {
	case ActionSkip, ActionCheck:
		return a, true
	}
	return "", false
}

// Device instances define no actions.
