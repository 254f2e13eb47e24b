package services

import "errors"

var (
	// ErrNotAParticipant rejects actions by users without active membership.
	ErrNotAParticipant = errors.New("not an active participant")
	// ErrForbidden rejects privileged actions by non-admins and edits of
	// other users' messages.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyDeleted rejects edits of tombstoned messages.
	ErrAlreadyDeleted = errors.New("message already deleted")
	// ErrInvalidParticipants rejects creation with a wrong participant count
	// for the conversation kind.
	ErrInvalidParticipants = errors.New("invalid participant list")
	// ErrSelfConversation rejects a direct conversation with oneself.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	// ErrMissingTemplateVar rejects template rendering when a required
	// variable is absent.
	ErrMissingTemplateVar = errors.New("missing template variable")
)
