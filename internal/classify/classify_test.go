package classify

import (
	"testing"

	"github.com/driftwatch/driftwatch/internal/graph"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPermissionUser(t *testing.T) {
	p := graph.Permission{
		ID:    "perm1",
		Roles: []string{"write"},
		GrantedTo: &graph.IdentitySet{
			User: &graph.Identity{
				ID:          "user-123",
				DisplayName: "Jane Doe",
				Email:       "jane@example.com",
			},
		},
	}

	g, ok := FromPermission(p, "Quarterly Reports")
	require.True(t, ok)
	assert.Equal(t, models.PrincipalTypeUser, g.PrincipalType)
	assert.Equal(t, "user-123", g.PrincipalID)
	assert.Equal(t, "Jane Doe", g.PrincipalName)
	require.NotNil(t, g.PrincipalEmail)
	assert.Equal(t, "jane@example.com", *g.PrincipalEmail)
	assert.True(t, g.IsHuman)
	assert.Equal(t, "write", g.PermissionLevel)
	assert.Equal(t, models.PermissionTypeDirect, g.PermissionType)
}

func TestFromPermissionLegacyGroupID(t *testing.T) {
	// "U2VuaW9yIE1lbWJlcnM=" decodes to "Senior Members": a group presented
	// through the user facet with its name base64-encoded as the id.
	p := graph.Permission{
		ID:    "perm2",
		Roles: []string{"read"},
		GrantedTo: &graph.IdentitySet{
			User: &graph.Identity{
				ID:          "U2VuaW9yIE1lbWJlcnM=",
				DisplayName: "Senior Members",
			},
		},
	}

	g, ok := FromPermission(p, "Shared Documents")
	require.True(t, ok)
	assert.Equal(t, models.PrincipalTypeGroup, g.PrincipalType)
	assert.False(t, g.IsHuman)
}

func TestFromPermissionGroupKeywordWithoutEmail(t *testing.T) {
	for _, name := range []string{"Site Owners", "Marketing Members", "Visitors", "Design Group"} {
		p := graph.Permission{
			ID:    "perm3",
			Roles: []string{"read"},
			GrantedTo: &graph.IdentitySet{
				User: &graph.Identity{ID: "some-id-12345", DisplayName: name},
			},
		}
		g, ok := FromPermission(p, "Docs")
		require.True(t, ok, name)
		assert.Equal(t, models.PrincipalTypeGroup, g.PrincipalType, name)
	}
}

func TestFromPermissionKeywordWithRealEmailStaysUser(t *testing.T) {
	p := graph.Permission{
		ID:    "perm4",
		Roles: []string{"read"},
		GrantedTo: &graph.IdentitySet{
			User: &graph.Identity{
				ID:          "user-456-real-id",
				DisplayName: "Grace Members",
				Email:       "grace.members@example.com",
			},
		},
	}
	g, ok := FromPermission(p, "Docs")
	require.True(t, ok)
	assert.Equal(t, models.PrincipalTypeUser, g.PrincipalType)
	assert.True(t, g.IsHuman)
}

func TestFromPermissionGroup(t *testing.T) {
	p := graph.Permission{
		ID:    "perm5",
		Roles: []string{"write"},
		GrantedTo: &graph.IdentitySet{
			Group: &graph.Identity{ID: "group-1", DisplayName: "Engineering"},
		},
	}
	g, ok := FromPermission(p, "Docs")
	require.True(t, ok)
	assert.Equal(t, models.PrincipalTypeGroup, g.PrincipalType)
	assert.Equal(t, "Engineering", g.PrincipalName)
	assert.False(t, g.IsHuman)
}

func TestFromPermissionGroupNameFallback(t *testing.T) {
	// A group whose display name is the resource's own name gets renamed from
	// its email, description, or a generic label.
	cases := []struct {
		identity graph.Identity
		want     string
	}{
		{graph.Identity{ID: "g1", DisplayName: "Docs", Email: "team@example.com"}, "team@example.com"},
		{graph.Identity{ID: "g2", DisplayName: "Docs", Description: "Team site group"}, "Team site group"},
		{graph.Identity{ID: "g3", DisplayName: "Docs"}, "Site Group"},
	}
	for _, tc := range cases {
		p := graph.Permission{
			ID:        "perm6",
			Roles:     []string{"read"},
			GrantedTo: &graph.IdentitySet{Group: &tc.identity},
		}
		g, ok := FromPermission(p, "Docs")
		require.True(t, ok)
		assert.Equal(t, tc.want, g.PrincipalName)
	}
}

func TestFromPermissionApplication(t *testing.T) {
	p := graph.Permission{
		ID:    "perm7",
		Roles: []string{"write"},
		GrantedTo: &graph.IdentitySet{
			Application: &graph.Identity{ID: "app-1", DisplayName: "Backup Service"},
		},
	}
	g, ok := FromPermission(p, "Docs")
	require.True(t, ok)
	assert.Equal(t, models.PrincipalTypeApplication, g.PrincipalType)
	assert.False(t, g.IsHuman)
}

func TestFromPermissionNoGrantee(t *testing.T) {
	p := graph.Permission{ID: "perm8", Roles: []string{"read"}}
	_, ok := FromPermission(p, "Docs")
	assert.False(t, ok)
}

func TestPermissionLevelAndType(t *testing.T) {
	user := &graph.IdentitySet{User: &graph.Identity{ID: "u1", DisplayName: "A", Email: "a@example.com"}}

	link := graph.Permission{
		ID:        "p1",
		Roles:     []string{"read", "write"},
		Link:      &graph.SharingLink{Type: "view", Scope: "organization"},
		GrantedTo: user,
	}
	g, ok := FromPermission(link, "Docs")
	require.True(t, ok)
	assert.Equal(t, "read, write (Shared via view link)", g.PermissionLevel)
	assert.Equal(t, models.PermissionTypeShared, g.PermissionType)

	inherited := graph.Permission{
		ID:            "p2",
		InheritedFrom: &graph.ItemRef{ID: "parent"},
		GrantedTo:     user,
	}
	g, ok = FromPermission(inherited, "Docs")
	require.True(t, ok)
	assert.Equal(t, "Read", g.PermissionLevel)
	assert.Equal(t, models.PermissionTypeInherited, g.PermissionType)
}

func TestHasBrokenInheritance(t *testing.T) {
	inherited := graph.Permission{ID: "p1", InheritedFrom: &graph.ItemRef{ID: "parent"}}
	direct := graph.Permission{ID: "p2"}

	assert.False(t, HasBrokenInheritance(nil))
	assert.False(t, HasBrokenInheritance([]graph.Permission{inherited}))
	assert.True(t, HasBrokenInheritance([]graph.Permission{inherited, direct}))
	assert.True(t, HasBrokenInheritance([]graph.Permission{direct}))
}
