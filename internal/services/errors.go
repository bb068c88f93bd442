package services

import (
	"errors"
	"fmt"
	"net/http"
	"wallstreetvotes/internal/subjectkey"
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrSelfVote          = errors.New("cannot vote for yourself")
	ErrInvalidVote       = errors.New("invalid vote direction")
)

// StoreError wraps a transport or transaction failure from the database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// Message maps a service error to text the presentation layer can show a user.
func Message(err error) string {
	var se *StoreError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateUsername):
		return "Username already exists, pick another one."
	case errors.Is(err, ErrInvalidUsername):
		return "Username must be 3-32 letters, digits or underscores."
	case errors.Is(err, ErrInvalidPassword):
		return "Password must be 6-72 characters."
	case errors.Is(err, ErrAlreadyVoted):
		return "You have already voted on this."
	case errors.Is(err, ErrSelfVote):
		return "You cannot vote for yourself."
	case errors.Is(err, ErrAlreadyExists):
		return "That stock has already been added."
	case errors.Is(err, subjectkey.ErrInvalidTicker):
		return "Ticker must be 1-10 letters, digits or dots."
	case errors.Is(err, subjectkey.ErrInvalidDirection), errors.Is(err, ErrInvalidVote):
		return "Invalid vote direction."
	case errors.Is(err, subjectkey.ErrInvalidKey):
		return "Unknown stock."
	case errors.Is(err, ErrNotFound):
		return "Not found."
	case errors.As(err, &se):
		return "Something went wrong on our side, please try again."
	}
	return "Something went wrong, please try again."
}

// HTTPStatus maps a service error to a response code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrDuplicateUsername), errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSelfVote):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrInvalidVote),
		errors.Is(err, subjectkey.ErrInvalidTicker), errors.Is(err, subjectkey.ErrInvalidDirection),
		errors.Is(err, subjectkey.ErrInvalidKey):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
