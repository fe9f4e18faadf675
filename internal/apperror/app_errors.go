package apperror

import "errors"

var (
	ErrRoomFull          = errors.New("room is full")
	ErrAlreadyInProgress = errors.New("match is already in progress")
	ErrNotInProgress     = errors.New("match is not in progress")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrCellOccupied      = errors.New("cell is already occupied")
	ErrInvalidIndex      = errors.New("invalid cell index")
	ErrNotFinished       = errors.New("match is not finished")
	ErrAlreadyRegistered = errors.New("player is already registered")
	ErrNotFound          = errors.New("not found")
	ErrInvalidMessage    = errors.New("invalid message")
)

// Code returns the wire code sent to clients in an actionRejected message.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, ErrAlreadyInProgress):
		return "ALREADY_IN_PROGRESS"
	case errors.Is(err, ErrNotInProgress):
		return "NOT_IN_PROGRESS"
	case errors.Is(err, ErrNotYourTurn):
		return "NOT_YOUR_TURN"
	case errors.Is(err, ErrCellOccupied):
		return "CELL_OCCUPIED"
	case errors.Is(err, ErrInvalidIndex):
		return "INVALID_INDEX"
	case errors.Is(err, ErrNotFinished):
		return "NOT_FINISHED"
	case errors.Is(err, ErrAlreadyRegistered):
		return "ALREADY_REGISTERED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidMessage):
		return "INVALID_MESSAGE"
	default:
		return "INTERNAL"
	}
}
