package ledger

type RoleKind int

const (
	RoleOrdinary RoleKind = iota
	RoleAdvertiser
	RoleAdmin
)

func (k RoleKind) String() string {
	switch k {
	case RoleAdvertiser:
		return "advertiser"
	case RoleAdmin:
		return "admin"
	default:
		return "user"
	}
}

// ActorRole is the classification used to decide which rows count as paid.
// Advertiser carries the set of topics the actor owns.
type ActorRole struct {
	kind        RoleKind
	ownedTopics map[string]struct{}
}

func OrdinaryRole() ActorRole { return ActorRole{kind: RoleOrdinary} }

func AdminRole() ActorRole { return ActorRole{kind: RoleAdmin} }

func AdvertiserRole(ownedTopicIDs []string) ActorRole {
	owned := make(map[string]struct{}, len(ownedTopicIDs))
	for _, id := range ownedTopicIDs {
		owned[id] = struct{}{}
	}
	return ActorRole{kind: RoleAdvertiser, ownedTopics: owned}
}

func (r ActorRole) Kind() RoleKind { return r.kind }

func (r ActorRole) IsAdvertiser() bool { return r.kind == RoleAdvertiser }

func (r ActorRole) OwnsTopic(topicID string) bool {
	_, ok := r.ownedTopics[topicID]
	return ok
}

// ResolveRole classifies an actor. Owning a topic or carrying the advertiser
// flag wins over admin, so an advertiser is never treated as a plain admin.
func ResolveRole(user *User, ownedTopicIDs []string, caller Caller) ActorRole {
	if len(ownedTopicIDs) > 0 || caller.IsAdvertiser || (user != nil && user.IsAdvertiser) {
		return AdvertiserRole(ownedTopicIDs)
	}
	if caller.IsAdmin || (user != nil && user.IsAdmin) {
		return AdminRole()
	}
	return OrdinaryRole()
}

// Actor is the user a history is built for.
type Actor struct {
	ID   string
	Role ActorRole
}
