package domain

import "errors"

var (
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrInsufficientFunds  = errors.New("insufficient available funds")
	ErrHoldNotFound       = errors.New("fund hold not found")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInvalidTransaction = errors.New("invalid transaction type")
)
