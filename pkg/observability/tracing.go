package observability

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer records X-Ray subsegments around calls to external collaborators.
// Without an active segment in the context the call runs untraced.
type Tracer struct {
	serviceName string
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string) *Tracer {
	return &Tracer{
		serviceName: serviceName,
	}
}

// Trace runs fn inside a subsegment named after the service and operation.
// A nil tracer runs fn directly.
func (t *Tracer) Trace(ctx context.Context, name string, annotations map[string]string, fn func(context.Context) error) error {
	if t == nil || xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSubsegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, name))
	if seg == nil {
		return fn(ctx)
	}
	for k, v := range annotations {
		_ = seg.AddAnnotation(k, v)
	}

	err := fn(ctx)
	if err != nil {
		_ = seg.AddError(err)
	}
	seg.Close(err)
	return err
}
