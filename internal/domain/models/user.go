package models

// User is the local snapshot of an account holder. UID is the public
// identifier exposed outside the service; ID never leaves it.
// InternalAccount marks the exchange's own liquidity account.
type User struct {
	ID              int64
	UID             string
	Blocked         bool
	InternalAccount bool
}
