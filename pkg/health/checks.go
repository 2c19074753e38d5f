package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger is a dependency that can prove its connection is alive.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes p and reports onFailure when the ping fails. Optional
// dependencies pass StatusDegraded.
func PingCheck(p Pinger, onFailure Status) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := p.Ping(ctx); err != nil {
			return ComponentHealth{Status: onFailure, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// IndexInfo describes a committed index.
type IndexInfo interface {
	BuildID() string
	DocCount() int
	CreatedAt() time.Time
}

// IndexCheck reports the index being served. A nil index is down.
func IndexCheck(idx IndexInfo) Check {
	return func(ctx context.Context) ComponentHealth {
		if idx == nil {
			return ComponentHealth{Status: StatusDown, Message: "no index loaded"}
		}
		return ComponentHealth{
			Status:  StatusUp,
			Message: fmt.Sprintf("build %s, %d documents, built %s",
				idx.BuildID(), idx.DocCount(), idx.CreatedAt().UTC().Format(time.RFC3339)),
		}
	}
}
