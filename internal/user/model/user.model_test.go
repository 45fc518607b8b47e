package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasFeature(t *testing.T) {
	var anonymous *User
	user := &User{UUID: "u1", Role: RoleUser}
	admin := &User{UUID: "a1", Role: RoleAdministrator}

	assert.True(t, anonymous.HasFeature(FeaturePublic))
	assert.False(t, anonymous.HasFeature(FeatureUserMine))

	assert.True(t, user.HasFeature(FeatureUserMine))
	assert.False(t, user.HasFeature(FeatureUserManage))

	assert.True(t, admin.HasFeature(FeatureUserManage))
	assert.False(t, (&User{Role: "GUEST"}).HasFeature(FeatureUserMine))
}

func TestCanTouch(t *testing.T) {
	var anonymous *User
	user := &User{UUID: "u1", Role: RoleUser}
	admin := &User{UUID: "a1", Role: RoleAdministrator}

	assert.True(t, user.CanTouch(FeatureUserManage, FeatureUserMine, "u1"))
	assert.False(t, user.CanTouch(FeatureUserManage, FeatureUserMine, "u2"))
	assert.True(t, admin.CanTouch(FeatureUserManage, FeatureUserMine, "u2"))
	assert.False(t, anonymous.CanTouch(FeatureUserManage, FeatureUserMine, ""))
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleUser))
	assert.True(t, ValidRole(RoleAdministrator))
	assert.False(t, ValidRole("ROOT"))
}
