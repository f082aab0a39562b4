// Package services defines the business logic for blocks, conversations,
// messages, and engagement counters. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrSelfConversation is returned when a user attempts to start a
	// conversation with themselves.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")

	// ErrSelfMessage is returned when sender and receiver are the same user.
	ErrSelfMessage = errors.New("cannot message yourself")

	// ErrSelfBlock is returned when a user attempts to block themselves.
	ErrSelfBlock = errors.New("cannot block yourself")

	// ErrBlocked indicates that a block exists between the two users, so
	// conversation creation and message sends are forbidden.
	ErrBlocked = errors.New("messaging is blocked between these users")

	// ErrEmptyContent is returned when a message body trims to nothing.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrContentTooLong is returned when a message body exceeds the
	// configured maximum rune count.
	ErrContentTooLong = errors.New("message content too long")

	// ErrConversationNotFound indicates that the requested conversation does
	// not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrNotParticipant is returned when the requesting user is not one of
	// the conversation's two participants.
	ErrNotParticipant = errors.New("not a participant of this conversation")

	// ErrListingNotFound indicates that the listing targeted by a view
	// record does not exist.
	ErrListingNotFound = errors.New("listing not found")
)
