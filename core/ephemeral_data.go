package core

import (
	"context"
	"strings"
)

const (
	keyPrefix          = "dialog:"
	keyIdPVerification = ":idpVerification"
	keyReturnTo        = ":returnTo"
)

// IdPVerification is what the dialog persists before handing the user to
// their identity provider, so the flow can resume after the page reloads.
type IdPVerification struct {
	Email string `json:"email"`
	Add   bool   `json:"add"`
}

func idpVerificationKey(sessionID string) string {
	return keyPrefix + sessionID + keyIdPVerification
}

func returnToKey(sessionID string) string {
	return keyPrefix + sessionID + keyReturnTo
}

func (s *Service) storeIdPVerification(ctx context.Context, sessionID string, v IdPVerification) error {
	v.Email = strings.TrimSpace(v.Email)
	return s.ephemSetJSON(ctx, idpVerificationKey(sessionID), v)
}

func (s *Service) loadIdPVerification(ctx context.Context, sessionID string) (IdPVerification, bool, error) {
	var v IdPVerification
	ok, err := s.ephemGetJSON(ctx, idpVerificationKey(sessionID), &v)
	return v, ok, err
}

func (s *Service) storeReturnTo(ctx context.Context, sessionID, target string) error {
	return s.ephemSetString(ctx, returnToKey(sessionID), target)
}

func (s *Service) loadReturnTo(ctx context.Context, sessionID string) (string, bool, error) {
	return s.ephemGetString(ctx, returnToKey(sessionID))
}
