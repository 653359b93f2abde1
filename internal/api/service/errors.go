package service

import (
	"errors"

	"ctchen222/tictactoe-history/internal/api/repository"
	redisrepo "ctchen222/tictactoe-history/internal/repository"
)

// ErrPersistence wraps any failure of the record store. Callers surface it
// and do not retry.
var ErrPersistence = errors.New("persistence failure")

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = repository.ErrDuplicateUser
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// ErrInvalidGame is returned for a save request that legal play cannot produce.
var ErrInvalidGame = errors.New("invalid game record")

var (
	ErrSessionNotFound  = redisrepo.ErrSessionNotFound
	ErrConcurrentUpdate = redisrepo.ErrConcurrentUpdate
	ErrGameNotFinished  = errors.New("game is not finished")
	ErrAlreadySaved     = errors.New("game was already saved")
)

// ErrCorruptSession is returned when a stored move list no longer replays.
var ErrCorruptSession = errors.New("stored session is corrupt")
