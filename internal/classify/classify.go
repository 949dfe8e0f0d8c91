// Package classify turns raw upstream permission entries into snapshot grants.
//
// The upstream API does not reliably distinguish legacy site groups from
// users, so nominal users are reclassified with two heuristics: a base64
// principal id that decodes to the display name (unique to legacy groups),
// and a group-keyword name without a usable email address.
package classify

import (
	"encoding/base64"
	"strings"

	"github.com/driftwatch/driftwatch/internal/graph"
	"github.com/driftwatch/driftwatch/internal/models"
)

var groupKeywords = []string{"Members", "Owners", "Visitors", "Contributors", "Group"}

// Grant is one classified permission, ready to become a snapshot row.
type Grant struct {
	PrincipalType   models.PrincipalType
	PrincipalID     string
	PrincipalName   string
	PrincipalEmail  *string
	IsHuman         bool
	PermissionLevel string
	PermissionType  models.PermissionType
}

// FromPermission classifies one raw entry. The second return is false when the
// entry carries no resolvable grantee and should be skipped.
func FromPermission(p graph.Permission, resourceName string) (Grant, bool) {
	grantee := p.Grantee()
	if grantee == nil {
		return Grant{}, false
	}

	g := Grant{
		PrincipalType: "unknown",
		PrincipalID:   p.ID,
		PrincipalName: "Unknown",
	}

	switch {
	case grantee.User != nil:
		u := grantee.User
		g.PrincipalType = models.PrincipalTypeUser
		g.IsHuman = true
		if u.ID != "" {
			g.PrincipalID = u.ID
		}
		g.PrincipalName = u.DisplayName
		if g.PrincipalName == "" {
			g.PrincipalName = "Unknown User"
		}
		g.PrincipalEmail = u.BestEmail()

		if isLegacyGroupID(g.PrincipalID, g.PrincipalName) || hasGroupName(g.PrincipalName, g.PrincipalEmail) {
			g.PrincipalType = models.PrincipalTypeGroup
			g.IsHuman = false
		}

	case grantee.Group != nil:
		gr := grantee.Group
		g.PrincipalType = models.PrincipalTypeGroup
		if gr.ID != "" {
			g.PrincipalID = gr.ID
		}
		g.PrincipalName = groupDisplayName(gr, resourceName)
		if gr.Email != "" {
			e := gr.Email
			g.PrincipalEmail = &e
		}

	case grantee.Application != nil:
		app := grantee.Application
		g.PrincipalType = models.PrincipalTypeApplication
		if app.ID != "" {
			g.PrincipalID = app.ID
		}
		g.PrincipalName = app.DisplayName
		if g.PrincipalName == "" {
			g.PrincipalName = "Unknown App"
		}
	}

	g.PermissionLevel = permissionLevel(p)
	g.PermissionType = permissionType(p)

	return g, true
}

// HasBrokenInheritance reports whether the resource carries at least one grant
// of its own, i.e. one without an inherited-from marker.
func HasBrokenInheritance(perms []graph.Permission) bool {
	for _, p := range perms {
		if !p.IsInherited() {
			return true
		}
	}
	return false
}

// isLegacyGroupID detects legacy site groups: their principal id is the
// base64 encoding of the display name.
func isLegacyGroupID(principalID, principalName string) bool {
	if len(principalID) <= 10 {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(principalID)
	if err != nil {
		// Tolerate missing padding, as upstream ids sometimes drop it.
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(principalID, "="))
		if err != nil {
			return false
		}
	}
	return len(decoded) > 0 && string(decoded) == principalName
}

// hasGroupName detects group-like display names lacking a usable email.
func hasGroupName(principalName string, email *string) bool {
	keyword := false
	for _, k := range groupKeywords {
		if strings.Contains(principalName, k) {
			keyword = true
			break
		}
	}
	if !keyword {
		return false
	}
	return email == nil || !strings.Contains(*email, "@")
}

// groupDisplayName avoids resource-name contamination in group labels.
func groupDisplayName(gr *graph.Identity, resourceName string) string {
	name := gr.DisplayName
	if name == "" || name == resourceName || strings.Contains(name, resourceName+" Permissions") {
		if gr.Email != "" {
			return gr.Email
		}
		if gr.Description != "" {
			return gr.Description
		}
		return "Site Group"
	}
	return name
}

func permissionLevel(p graph.Permission) string {
	level := "Read"
	if len(p.Roles) > 0 {
		level = strings.Join(p.Roles, ", ")
	}
	if p.Link != nil {
		linkType := p.Link.Type
		if linkType == "" {
			linkType = "unknown"
		}
		level = level + " (Shared via " + linkType + " link)"
	}
	return level
}

func permissionType(p graph.Permission) models.PermissionType {
	switch {
	case p.Link != nil:
		return models.PermissionTypeShared
	case p.IsInherited():
		return models.PermissionTypeInherited
	default:
		return models.PermissionTypeDirect
	}
}
