// Package policy centralizes who may do what. Handlers and services ask
// Allowed instead of comparing roles and owner ids inline.
package policy

import (
	"github.com/utafrali/folio/internal/domain"
)

// Action names a capability checked against an actor.
type Action string

// Capabilities.
const (
	ModerateReview    Action = "review:moderate"
	BypassEditWindow  Action = "review:bypass_edit_window"
	CreateReview      Action = "review:create"
	ViewModerationLog Action = "book:view_moderation_log"
	CreateBook        Action = "book:create"
	FileAppeal        Action = "appeal:file"
	ResolveAppeal     Action = "appeal:resolve"
	ListAppeals       Action = "appeal:list"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

type rule func(a Actor, book *domain.Book) bool

func authenticated(a Actor, _ *domain.Book) bool { return a.UserID != "" }

func admin(a Actor, _ *domain.Book) bool { return a.UserID != "" && a.IsAdmin() }

func bookAuthor(a Actor, book *domain.Book) bool { return book != nil && book.IsAuthor(a.UserID) }

func anyOf(rules ...rule) rule {
	return func(a Actor, book *domain.Book) bool {
		for _, r := range rules {
			if r(a, book) {
				return true
			}
		}
		return false
	}
}

func hasRole(roles ...string) rule {
	return func(a Actor, _ *domain.Book) bool {
		if a.UserID == "" {
			return false
		}
		for _, r := range roles {
			if a.Role == r {
				return true
			}
		}
		return false
	}
}

// The moderation log is visible to the book's author only. Admins are not
// exempt.
var rules = map[Action]rule{
	ModerateReview:    anyOf(bookAuthor, admin),
	BypassEditWindow:  admin,
	CreateReview:      authenticated,
	ViewModerationLog: bookAuthor,
	CreateBook:        hasRole(domain.RoleAuthor, domain.RoleAdmin),
	FileAppeal:        authenticated,
	ResolveAppeal:     admin,
	ListAppeals:       admin,
}

// Allowed reports whether actor may perform action. book is the resource the
// action targets and may be nil for actions that are not book scoped.
// Unknown actions are denied.
func Allowed(actor Actor, action Action, book *domain.Book) bool {
	r, ok := rules[action]
	if !ok {
		return false
	}
	return r(actor, book)
}
