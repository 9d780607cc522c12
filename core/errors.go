package core

import "errors"

var (
	ErrInvalidConfig       = errors.New("invalid simulation config")
	ErrStatisticsUndefined = errors.New("return statistics undefined")
	ErrEmptyEnsemble       = errors.New("empty ensemble")
)
