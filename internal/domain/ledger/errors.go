package ledger

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidFilter  = errors.New("invalid transaction filter")
	ErrNothingToWrite = errors.New("no transactions to record")
)
