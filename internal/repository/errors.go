package repository

import "errors"

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrIdentityNotFound    = errors.New("identity not found")
)
