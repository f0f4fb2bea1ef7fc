package roundtable

import "errors"

// Precondition errors. All of these are returned before any journal mutation.
var (
	ErrUnknownDiscussion     = errors.New("unknown discussion")
	ErrInvalidPhase          = errors.New("invalid phase index")
	ErrNoParticipants        = errors.New("discussion has no participants")
	ErrUnknownParticipant    = errors.New("unknown participant")
	ErrUnknownAction         = errors.New("unknown intervention action")
	ErrMissingQuestionTarget = errors.New("question requires a target participant")
	ErrMissingQuestionText   = errors.New("question requires text")
)
