package services

import (
	"errors"

	"github.com/SanderKaatee/yahtzee/persistence"
	"github.com/SanderKaatee/yahtzee/room"
	"github.com/SanderKaatee/yahtzee/state"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRateLimited      = errors.New("too many actions, slow down")
	ErrHintsUnavailable = errors.New("hints unavailable")
	ErrBadRequest       = errors.New("malformed request")
	ErrUnknownMessage   = errors.New("unknown message type")
	ErrNoWinner         = errors.New("game has no winner")
	ErrNameTooLong      = errors.New("name is too long")
)

// 错误分类，作为 error 消息的 code 字段
const (
	CodeUnauthorized = "unauthorized"
	CodePrecondition = "precondition"
	CodeNotFound     = "not_found"
	CodeBadRequest   = "bad_request"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"
)

var preconditions = []error{
	state.ErrNoRollsLeft,
	state.ErrMustRollFirst,
	state.ErrMustScore,
	state.ErrCategoryScored,
	state.ErrNoPlayers,
	state.ErrGameNotStarted,
	state.ErrGameInProgress,
	state.ErrGameFinished,
	state.ErrDiceRolling,
	state.ErrTransitionNotAllowed,
	room.ErrRoomFull,
	room.ErrCannotKickSelf,
	ErrHintsUnavailable,
}

// ErrorCode classifies err for the client.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case state.IsAuthorization(err):
		return CodeUnauthorized
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrRoomNotFound),
		errors.Is(err, room.ErrPlayerNotFound),
		errors.Is(err, persistence.ErrRecordNotFound):
		return CodeNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrUnknownMessage),
		errors.Is(err, ErrNameTooLong),
		errors.Is(err, state.ErrUnknownCategory),
		errors.Is(err, state.ErrInvalidDie):
		return CodeBadRequest
	}
	for _, p := range preconditions {
		if errors.Is(err, p) {
			return CodePrecondition
		}
	}
	return CodeInternal
}

// PublicMessage is the text shown to the client. Internal failures stay generic.
func PublicMessage(err error) string {
	if ErrorCode(err) == CodeInternal {
		return "internal server error"
	}
	return err.Error()
}
