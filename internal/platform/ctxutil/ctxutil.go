package ctxutil

import "context"

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

type actorKey struct{}

// Actor identifies the pre-authorized caller of a pipeline. A zero Actor
// means "no user in scope" (system save); snapshots then carry a NULL
// created_by.
type Actor struct {
	UserID int64
	Locale string
}

func (a Actor) Anonymous() bool { return a.UserID == 0 }

// Anonymous is the zero actor, used for system-initiated writes.
func Anonymous() Actor { return Actor{} }

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func GetActor(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Actor{}
}
