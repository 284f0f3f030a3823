package requestdata

import "context"

type contextKey struct{}

// RequestData carries the authenticated caller through a request context.
type RequestData struct {
	UserID      uint
	Username    string
	TokenString string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, contextKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	rd, _ := ctx.Value(contextKey{}).(*RequestData)
	return rd
}
