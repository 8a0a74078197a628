package domain

import "context"

// RequestObjectFetcher dereferences a request_uri into a raw JOSE object.
// Used only by the REQUEST_URI pattern; implementations must bound the fetch
// with a timeout and surface failures as plain errors, never panics.
type RequestObjectFetcher interface {
	Fetch(ctx context.Context, requestURI string) (string, error)
}

// RequestObjectDecoder decodes and verifies a signed (optionally encrypted)
// request object against the client's registered JOSE metadata
type RequestObjectDecoder interface {
	// Decode verifies the JOSE object and returns its claims
	Decode(ctx context.Context, rawJose string, client *ClientConfiguration, server *ServerConfiguration) (map[string]interface{}, error)
}

// JwtBearerVerifier verifies an RFC 7523 authorization grant assertion and
// returns its subject
type JwtBearerVerifier interface {
	Verify(ctx context.Context, assertion string, client *ClientConfiguration, tokenEndpoint string) (subject string, scopes []string, err error)
}
