package domain

import "fmt"

// SubjectKind discriminates how a caller's identity was resolved.
type SubjectKind string

const (
	SubjectAPIKey  SubjectKind = "API_KEY"
	SubjectUser    SubjectKind = "USER"
	SubjectIP      SubjectKind = "IP"
	SubjectUnknown SubjectKind = "UNKNOWN"
)

// Subject is a resolved caller identity. Key is always "<type>:<value>" where
// type is apiKey, user, ip or unknown per Kind; for API keys Value is the hex digest of
// a salted hash, never the raw key.
type Subject struct {
	Kind  SubjectKind
	Value string
}

// Key returns the stable "<type>:<value>" string used everywhere the subject
// participates in a lookup key (policy, rate limiter, cache scope).
func (s Subject) Key() string {
	return fmt.Sprintf("%s:%s", subjectTypeTag(s.Kind), s.Value)
}

func subjectTypeTag(k SubjectKind) string {
	switch k {
	case SubjectAPIKey:
		return "apiKey"
	case SubjectUser:
		return "user"
	case SubjectIP:
		return "ip"
	default:
		return "unknown"
	}
}

// Unknown is the sentinel subject used when no resolution step succeeds.
var Unknown = Subject{Kind: SubjectUnknown, Value: "unknown"}
