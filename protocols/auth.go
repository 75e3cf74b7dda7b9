package protocols

import "time"

type Authenticator interface {
	IsAuthorized(credential string) bool
}

type TokenIssuer interface {
	Issue(clientID, clientSecret string) (token string, expiresIn time.Duration, err error)
}
