package model

import "errors"

var (
	errNoLoader   = errors.New("no detector loader configured")
	errNilCascade = errors.New("loader returned no cascade")
)
