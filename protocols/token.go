package protocols

import "context"

type TokenSource interface {
	FetchCachedToken(ctx context.Context) (string, error)
}
