package errors

import "errors"

var (
	ErrRuleNotFound = errors.New("availability rule not found")

	ErrConfigNotFound = errors.New("validation config not found")
)
