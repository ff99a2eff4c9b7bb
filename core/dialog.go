package core

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Dialog is the state of one sign-in dialog. It is not safe for concurrent
// use; each browser window owns its own Dialog.
type Dialog struct {
	svc     *Service
	session Session
	marker  Marker
}

func (d *Dialog) SessionID() string { return d.session.ID }

func (d *Dialog) Session() Session { return d.session }

func (d *Dialog) Marker() Marker { return d.marker }

// Get validates the relying party's options and returns the outbox for this
// call. On failure err is a *ValidationError and the outbox holds a single
// error_screen event; on success it ends with a start event.
//
// When the dialog was reopened by an identity provider redirect, options are
// ignored and the start parameters are rebuilt from persisted state.
func (d *Dialog) Get(ctx context.Context, origin string, params Params) (Outcome, error) {
	if d.marker.Resuming() {
		return d.resume(ctx), nil
	}

	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	v, err := ValidateParams(d.svc.cfg, origin, params)
	if err != nil {
		return d.fail(ctx, origin, err), err
	}

	if v.ReturnTo != "" {
		if err := d.svc.storeReturnTo(ctx, d.session.ID, v.ReturnTo); err != nil {
			// Losing returnTo only degrades the post-auth redirect.
			d.svc.entry(ctx, d.session.ID).WithError(err).Warn("dialog: failed to persist returnTo")
		}
	}

	var out Outcome
	if v.RPAPI != "" {
		out.emit(EventKPIData, KPIData{RPAPI: v.RPAPI, Orphaned: true})
	}
	if v.StartTime != nil {
		out.emit(EventStartTime, *v.StartTime)
	}
	out.emit(EventStart, v.Start)
	return out, nil
}

func (d *Dialog) fail(ctx context.Context, origin string, err error) Outcome {
	var out Outcome
	screen := ErrorScreen{Message: err.Error()}
	if ve, ok := AsValidationError(err); ok {
		screen.Field = ve.Field
	}
	d.svc.entry(ctx, d.session.ID).WithFields(log.Fields{
		"origin": origin,
		"field":  screen.Field,
	}).Info("dialog: rejected relying party options")
	out.emit(EventErrorScreen, screen)
	return out
}

// ReturnTo returns the post-auth redirect saved by the last successful Get.
func (d *Dialog) ReturnTo(ctx context.Context) (string, bool, error) {
	return d.svc.loadReturnTo(ctx, d.session.ID)
}

// SaveIdPVerification persists what is needed to resume after the user
// comes back from their identity provider.
func (d *Dialog) SaveIdPVerification(ctx context.Context, v IdPVerification) error {
	if strings.TrimSpace(v.Email) == "" {
		return errors.New("email is required")
	}
	return d.svc.storeIdPVerification(ctx, d.session.ID, v)
}
