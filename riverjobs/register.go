package riverjobs

import (
	"context"
	"fmt"

	"github.com/PaulFidika/dialogkit/core"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// RegisterUsedAddressAsPrimaryWorker registers the used-address worker into a River workers registry.
func RegisterUsedAddressAsPrimaryWorker(ws *river.Workers, recorder core.PrimaryAddressRecorder) {
	river.AddWorker(ws, NewUsedAddressAsPrimaryWorker(recorder))
}

// JobInserter is the subset of *river.Client used to enqueue jobs.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Enqueuer implements core.PrimaryAddressRecorder by inserting a River job,
// so the call survives restarts and is retried on failure.
type Enqueuer struct {
	client JobInserter
}

func NewEnqueuer(client JobInserter) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) RecordUsedAddressAsPrimary(ctx context.Context, email string) error {
	args := UsedAddressAsPrimaryArgs{Email: email}
	opts := args.InsertOpts()
	if _, err := e.client.Insert(ctx, args, &opts); err != nil {
		return fmt.Errorf("enqueue %s: %w", args.Kind(), err)
	}
	return nil
}
