package auth

import "errors"

var (
	// ErrAuthFailure is returned when a token exchange yields no usable token
	ErrAuthFailure = errors.New("authorization failed")
	// ErrNoCode is returned when the redirect callback carried no authorization code
	ErrNoCode = errors.New("no authorization code received")
	// ErrAuthTimeout is returned when no redirect callback arrived in time
	ErrAuthTimeout = errors.New("timed out waiting for authorization redirect")
	// ErrNoSession is returned when the credential file is missing or unusable
	ErrNoSession = errors.New("no stored session")
	// ErrNoRegistration is returned when the interactive flow has no app registration to use
	ErrNoRegistration = errors.New("no app registration; run with --auth and the client options")
)
