package assistants

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when an assistant does not exist or is not visible
// to the caller for the requested operation.
var ErrNotFound = errors.New("assistant not found")

// Assistant is a user-authored ADL definition
type Assistant struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	YAMLContent string    `json:"yaml_content"`
	IsPublic    bool      `json:"is_public"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Update holds the fields an owner may change. Nil fields are left untouched;
// a non-nil Tags replaces the whole tag set.
type Update struct {
	Title       *string   `json:"title,omitempty"`
	YAMLContent *string   `json:"yaml_content,omitempty"`
	IsPublic    *bool     `json:"is_public,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// Apply copies the set fields onto a, except tags
func (up Update) Apply(a *Assistant) {
	if up.Title != nil {
		a.Title = *up.Title
	}
	if up.YAMLContent != nil {
		a.YAMLContent = *up.YAMLContent
	}
	if up.IsPublic != nil {
		a.IsPublic = *up.IsPublic
	}
	if up.Tags != nil {
		a.Tags = NormalizeTags(*up.Tags)
	}
}

// CanView reports whether userID may read a
func (a *Assistant) CanView(userID int64) bool {
	return a.IsPublic || a.UserID == userID
}

// NormalizeTags trims names, drops empties and duplicates, keeping first-seen order
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
