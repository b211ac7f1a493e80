package pinengine

import "context"

// Request sources recorded on events and logs.
const (
	SourceAPI     = "api"
	SourceBatch   = "batch"
	SourceTimer   = "timer"
	SourceResume  = "resume"
	SourceRoutine = "routine"
	SourceGateway = "gateway"
	SourceGRPC    = "grpc"
)

type sourceKey struct{}

// WithSource tags ctx with the origin of the requests made under it.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source recorded by WithSource, or SourceAPI.
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceAPI
}
