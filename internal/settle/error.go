package settle

import "errors"

var (
	// ErrInsufficientBalance fails a settlement before anything is reserved.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTradeExecutionFailed wraps every terminal settlement failure,
	// including cleanup failures after a successful commit.
	ErrTradeExecutionFailed = errors.New("trade execution failed")
)
