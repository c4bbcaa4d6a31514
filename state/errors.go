package state

import "errors"

// authorization
var (
	ErrNotYourTurn = errors.New("it's not your turn")
	ErrNotHost     = errors.New("only the host can do that")
)

// preconditions
var (
	ErrNoRollsLeft     = errors.New("no rolls left")
	ErrMustRollFirst   = errors.New("you must roll at least once")
	ErrMustScore       = errors.New("no rolls left, choose a category to score")
	ErrCategoryScored  = errors.New("category already scored")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidDie      = errors.New("invalid die index")
	ErrNoPlayers       = errors.New("need at least 1 player to start")
	ErrGameNotStarted  = errors.New("game has not started")
	ErrGameInProgress  = errors.New("game already in progress")
	ErrGameFinished    = errors.New("game is over")
	ErrDiceRolling     = errors.New("dice are still rolling")
)

// IsAuthorization reports whether err is a turn-ownership or host-privilege failure.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrNotYourTurn) || errors.Is(err, ErrNotHost)
}
