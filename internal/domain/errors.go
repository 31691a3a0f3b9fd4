package domain

import "errors"

var (
	// ErrInvalidProbability marks a snapshot with a probability outside [0,1].
	// Only that market is rejected; the batch continues.
	ErrInvalidProbability = errors.New("invalid probability")

	// ErrUpstreamUnavailable wraps a failed or timed out provider/oracle call.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInsufficientHistory is returned by the backtest when the window has no data.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNotReady is returned by read paths before any state has been committed.
	ErrNotReady = errors.New("not ready")

	// ErrInsufficientFunds refuses a trade whose stake exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
