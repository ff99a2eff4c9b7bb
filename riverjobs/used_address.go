package riverjobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PaulFidika/dialogkit/core"
	"github.com/riverqueue/river"
)

type UsedAddressAsPrimaryArgs struct {
	Email string `json:"email"`
}

func (UsedAddressAsPrimaryArgs) Kind() string { return "dialog_used_address_as_primary" }

func (args UsedAddressAsPrimaryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Minute,
		},
	}
}

// UsedAddressAsPrimaryWorker replays the used-address call against the
// backend, retrying with River's backoff when it fails.
type UsedAddressAsPrimaryWorker struct {
	river.WorkerDefaults[UsedAddressAsPrimaryArgs]
	recorder core.PrimaryAddressRecorder
}

func NewUsedAddressAsPrimaryWorker(recorder core.PrimaryAddressRecorder) *UsedAddressAsPrimaryWorker {
	return &UsedAddressAsPrimaryWorker{recorder: recorder}
}

func (w *UsedAddressAsPrimaryWorker) Timeout(*river.Job[UsedAddressAsPrimaryArgs]) time.Duration {
	return 30 * time.Second
}

func (w *UsedAddressAsPrimaryWorker) Work(ctx context.Context, job *river.Job[UsedAddressAsPrimaryArgs]) error {
	if w == nil || w.recorder == nil {
		return errors.New("dialog used address: recorder not configured")
	}
	email := strings.TrimSpace(job.Args.Email)
	if email == "" {
		return river.JobCancel(errors.New("dialog used address: empty email"))
	}
	return w.recorder.RecordUsedAddressAsPrimary(ctx, email)
}
