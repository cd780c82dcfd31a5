package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrGenerationFailed = errors.New("answer generation failed")
)
