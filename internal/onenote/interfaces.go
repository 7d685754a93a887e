package onenote

import "context"

//go:generate mockgen -source=interfaces.go -destination=mock_onenote/mock_onenote.go -package=mock_onenote
type (
	// TokenProvider hands out bearer tokens and recovers from a rejected one
	TokenProvider interface {
		Token(ctx context.Context) (string, error)
		HandleUnauthorized(ctx context.Context) (string, error)
	}
)
