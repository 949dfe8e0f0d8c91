package graph

// Tagged response structs for the upstream record shapes. Field aliases
// (displayName vs name, email vs userPrincipalName, grantedTo vs
// grantedToIdentities) are resolved here, once, instead of at call sites.

// Site is a top-level site of the tenant.
type Site struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

// Label returns the human name of the site, preferring displayName.
func (s Site) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Drive is a document library under a site.
type Drive struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FolderFacet is present on items that are folders.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// DriveItem is a folder or file inside a drive.
type DriveItem struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	WebURL string       `json:"webUrl"`
	Folder *FolderFacet `json:"folder"`
}

// IsFolder reports whether the item is a folder.
func (i DriveItem) IsFolder() bool { return i.Folder != nil }

// Identity is one grantee: a user, group, or application.
type Identity struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Email             string `json:"email"`
	UserPrincipalName string `json:"userPrincipalName"`
	Description       string `json:"description"`
}

// BestEmail returns the most usable address for the identity, or nil.
func (id Identity) BestEmail() *string {
	if id.Email != "" {
		e := id.Email
		return &e
	}
	if id.UserPrincipalName != "" {
		e := id.UserPrincipalName
		return &e
	}
	return nil
}

// IdentitySet carries at most one of user/group/application.
type IdentitySet struct {
	User        *Identity `json:"user"`
	Group       *Identity `json:"group"`
	Application *Identity `json:"application"`
}

// SharingLink marks a grant that arrived through a sharing link.
type SharingLink struct {
	Type  string `json:"type"`
	Scope string `json:"scope"`
}

// ItemRef points at the resource a grant was inherited from.
type ItemRef struct {
	ID      string `json:"id"`
	DriveID string `json:"driveId"`
	Path    string `json:"path"`
}

// Permission is one raw access-control entry on an item.
type Permission struct {
	ID                  string        `json:"id"`
	Roles               []string      `json:"roles"`
	Link                *SharingLink  `json:"link"`
	InheritedFrom       *ItemRef      `json:"inheritedFrom"`
	GrantedTo           *IdentitySet  `json:"grantedTo"`
	GrantedToIdentities []IdentitySet `json:"grantedToIdentities"`
}

// Grantee resolves the grantee of a permission: the direct grantedTo object
// when present, else the first entry of the identities list, else nil.
func (p Permission) Grantee() *IdentitySet {
	if p.GrantedTo != nil {
		return p.GrantedTo
	}
	if len(p.GrantedToIdentities) > 0 {
		return &p.GrantedToIdentities[0]
	}
	return nil
}

// IsInherited reports whether the grant carries an inherited-from marker.
func (p Permission) IsInherited() bool { return p.InheritedFrom != nil }
