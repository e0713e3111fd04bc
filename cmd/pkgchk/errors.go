package main

import "errors"

var (
	ErrManifestRequired = errors.New("bpkg or flag not provided")
	ErrHashRequired     = errors.New("hash not provided")
	ErrOneQuery         = errors.New("exactly one query flag required")
	ErrUnableToLoad     = errors.New("unable to load pkg")
)
