package session

import "context"

// Store persists and retrieves a Context by session id. Load on an
// unknown session id returns a fresh, empty Context rather than an error.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Context, error)
	Save(ctx context.Context, sessionID string, sc *Context) error
}

func newEmpty(sessionID string) *Context {
	return &Context{SessionID: sessionID}
}
