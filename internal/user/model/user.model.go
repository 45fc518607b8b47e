package model

type Role string

const (
	RoleUser          Role = "USER"
	RoleAdministrator Role = "ADMINISTRATOR"
)

// Feature is the permission an endpoint requires.
type Feature string

const (
	FeaturePublic     Feature = "PUBLIC"
	FeatureUserMine   Feature = "USER_MINE"
	FeatureUserManage Feature = "USER_MANAGE"
)

var roleFeatures = map[Role][]Feature{
	RoleUser:          {FeaturePublic, FeatureUserMine},
	RoleAdministrator: {FeaturePublic, FeatureUserMine, FeatureUserManage},
}

type User struct {
	UUID      string `json:"uuid"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	Role      Role   `json:"role"`
}

// HasFeature reports whether u may use f. A nil user is an anonymous visitor.
func (u *User) HasFeature(f Feature) bool {
	if f == FeaturePublic {
		return true
	}
	if u == nil {
		return false
	}
	for _, granted := range roleFeatures[u.Role] {
		if granted == f {
			return true
		}
	}
	return false
}

// CanTouch reports whether u may act on an entity owned by ownerUUID: either
// through the manage feature, or through the mine feature on its own entity.
func (u *User) CanTouch(manage, mine Feature, ownerUUID string) bool {
	if u == nil {
		return false
	}
	if u.HasFeature(manage) {
		return true
	}
	return u.HasFeature(mine) && u.UUID == ownerUUID
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	_, ok := roleFeatures[r]
	return ok
}
