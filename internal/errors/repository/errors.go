package repository

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderLocked        = errors.New("order already locked")
	ErrUserNotFound       = errors.New("user not found")
	ErrCustomFeeNotFound  = errors.New("custom fee not found")
	ErrDefaultFeeNotFound = errors.New("default fee not found")
	ErrCatalogKeyNotFound = errors.New("catalog key not found")
)
