package logger

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/trace"

	"github.com/abnerjacobsen/das-sankhya/internal/ident"
	"github.com/abnerjacobsen/das-sankhya/internal/reqctx"
)

// NoValue is printed in text output for identifiers that are not set
const NoValue = "-"

// ID is a request identifier attached to a log entry.
// An ID with Present == false is the explicit "no value" marker and
// serializes as JSON null.
type ID struct {
	Value   string
	Present bool
}

// MarshalJSON implements json.Marshaler
func (id ID) MarshalJSON() ([]byte, error) {
	if !id.Present {
		return []byte("null"), nil
	}
	return json.Marshal(id.Value)
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*id = ID{Value: s, Present: true}
	return nil
}

// String returns the value or NoValue
func (id ID) String() string {
	if !id.Present {
		return NoValue
	}
	return id.Value
}

// Enrichment controls which request identifiers are attached to log entries.
// Lengths truncate the value to its first N characters; zero keeps it whole.
type Enrichment struct {
	CorrelationIDLength   int
	RequestIDLength       int
	IncludeIdempotencyKey bool
	IdempotencyKeyLength  int
}

// DefaultEnrichment attaches all identifiers untruncated
func DefaultEnrichment() Enrichment {
	return Enrichment{IncludeIdempotencyKey: true}
}

// apply reads the identifiers of the request scope in ctx into entry
func (e Enrichment) apply(ctx context.Context, entry *Entry) {
	if ctx == nil {
		ctx = context.Background()
	}

	entry.CorrelationID = lookup(ctx, reqctx.CorrelationID, e.CorrelationIDLength)
	entry.RequestID = lookup(ctx, reqctx.RequestID, e.RequestIDLength)
	if e.IncludeIdempotencyKey {
		idk := lookup(ctx, reqctx.IdempotencyKey, e.IdempotencyKeyLength)
		entry.IdempotencyKey = &idk
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}
}

func lookup(ctx context.Context, kind reqctx.Kind, length int) ID {
	v, ok := reqctx.Get(ctx, kind)
	if !ok {
		return ID{}
	}
	return ID{Value: ident.Truncate(v, length), Present: true}
}
