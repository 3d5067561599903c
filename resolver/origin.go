package resolver

import (
	"context"
)

type originContextKey struct{}

// WithOrigin records where a resolution request comes from (a page, a component,
// a job). Origins only show up in log fields; they never affect key identity,
// so requests from different origins share cache entries and flights.
func WithOrigin(ctx context.Context, origins ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(origins) == 0 {
		return ctx
	}

	combined := dedupeStrings(append(originsFromContext(ctx), origins...))
	if len(combined) == 0 {
		return ctx
	}

	return context.WithValue(ctx, originContextKey{}, combined)
}

func originsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if origins, ok := ctx.Value(originContextKey{}).([]string); ok {
		return append([]string(nil), origins...)
	}
	return nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
