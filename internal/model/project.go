// Package model contains domain types for the tanuki application.
// These types are independent of the wire format of the upstream API.
package model

import (
	"cmp"
	"slices"
	"time"
)

// Visibility is the access level of a project.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
	VisibilityPrivate  Visibility = "private"
)

// Project is a listing entry for a repository on the hosting platform.
type Project struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	NameWithNamespace string     `json:"nameWithNamespace"`
	PathWithNamespace string     `json:"pathWithNamespace"`
	Description       string     `json:"description,omitempty"`
	WebURL            string     `json:"webUrl"`
	AvatarURL         string     `json:"avatarUrl,omitempty"`
	DefaultBranch     string     `json:"defaultBranch,omitempty"`
	Visibility        Visibility `json:"visibility,omitempty"`
	StarCount         int        `json:"starCount"`
	ForksCount        int        `json:"forksCount"`
	Archived          bool       `json:"archived,omitempty"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	LastActivityAt    *time.Time `json:"lastActivityAt,omitempty"`
}

// Key returns the identity used to dedupe projects across pages and scopes.
func (p Project) Key() int64 {
	return p.ID
}

// SortByActivity orders projects by last activity, newest first. Missing
// timestamps sort as the earliest possible time; ties break by id ascending.
func SortByActivity(projects []Project) {
	slices.SortStableFunc(projects, func(a, b Project) int {
		if c := activityTime(b).Compare(activityTime(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func activityTime(p Project) time.Time {
	if p.LastActivityAt == nil {
		return time.Time{}
	}
	return *p.LastActivityAt
}
