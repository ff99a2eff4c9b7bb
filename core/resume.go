package core

import (
	"context"
	"time"
)

const usedAddressTimeout = 10 * time.Second

// resume rebuilds start parameters after an identity provider redirect.
// Collaborator failures are logged and never stop start from being emitted.
func (d *Dialog) resume(ctx context.Context) Outcome {
	cancelled := d.marker == MarkerAuthReturnCancel
	info := StartInfo{Type: "primary", Cancelled: &cancelled}

	entry := d.svc.entry(ctx, d.session.ID).WithField("marker", string(d.marker))

	v, ok, err := d.svc.loadIdPVerification(ctx, d.session.ID)
	switch {
	case err != nil:
		entry.WithError(err).Warn("dialog: could not load idp verification state")
	case !ok:
		entry.Warn("dialog: resuming without idp verification state")
	default:
		add := v.Add
		info.Email = v.Email
		info.Add = &add
	}

	if ok && !v.Add && d.session.Authenticated && d.session.AuthLevel == AuthLevelAssertion {
		d.recordUsedAddress(ctx, v.Email)
	}

	var out Outcome
	out.emit(EventStart, info)
	return out
}

// recordUsedAddress fires the used-address call without waiting for it.
func (d *Dialog) recordUsedAddress(ctx context.Context, email string) {
	if !d.svc.HasPrimaryAddressRecorder() {
		d.svc.entry(ctx, d.session.ID).Debug("dialog: no primary address recorder registered")
		return
	}
	rec := d.svc.recorder
	entry := d.svc.entry(ctx, d.session.ID)
	bg := context.WithoutCancel(ctx)
	go func() {
		cctx, cancel := context.WithTimeout(bg, usedAddressTimeout)
		defer cancel()
		if err := rec.RecordUsedAddressAsPrimary(cctx, email); err != nil {
			entry.WithError(err).Warn("dialog: used_address_as_primary failed")
		}
	}()
}
