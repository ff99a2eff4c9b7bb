package authhttp

import (
	"net/http"
	"strings"

	core "github.com/PaulFidika/dialogkit/core"
	log "github.com/sirupsen/logrus"
)

type dialogGetRequest struct {
	Fragment string      `json:"fragment"`
	Origin   string      `json:"origin"`
	Params   core.Params `json:"params"`
}

type dialogGetResponse struct {
	Error   string       `json:"error,omitempty"`
	Field   string       `json:"field,omitempty"`
	Session string       `json:"session"`
	Events  []core.Event `json:"events"`
}

func (s *Service) handleDialogGetPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDialogGet) {
		tooMany(w)
		return
	}
	var req dialogGetRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid_request")
		return
	}
	rawOrigin := req.Origin
	if strings.TrimSpace(rawOrigin) == "" {
		rawOrigin = r.Header.Get("Origin")
	}
	origin, ok := normalizeOrigin(rawOrigin)
	if !ok {
		badRequest(w, "invalid_origin")
		return
	}

	d := s.svc.Open(req.Fragment, coreSession(r.Context(), r.Header.Get(SessionHeader)))
	w.Header().Set(SessionHeader, d.SessionID())

	out, err := d.Get(r.Context(), origin, req.Params)
	if s.publisher != nil {
		if perr := out.Dispatch(r.Context(), s.publisher); perr != nil {
			log.WithContext(r.Context()).WithError(perr).WithField("session", d.SessionID()).Warn("dialog: event publish failed")
		}
	}

	resp := dialogGetResponse{Session: d.SessionID(), Events: out.Events}
	if err != nil {
		ve, ok := core.AsValidationError(err)
		if !ok {
			serverErrWithLog(w, r, "dialog_get_failed", err, "")
			return
		}
		resp.Error = ve.Message
		resp.Field = ve.Field
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type idpVerificationRequest struct {
	Email string `json:"email"`
	Add   bool   `json:"add"`
}

func (s *Service) handleIdPVerificationPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDialogIdPVerification) {
		tooMany(w)
		return
	}
	sid := strings.TrimSpace(r.Header.Get(SessionHeader))
	if sid == "" {
		badRequest(w, "missing_session")
		return
	}
	var req idpVerificationRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		badRequest(w, "invalid_request")
		return
	}
	d := s.svc.Open("", coreSession(r.Context(), sid))
	if err := d.SaveIdPVerification(r.Context(), core.IdPVerification{Email: req.Email, Add: req.Add}); err != nil {
		serverErrWithLog(w, r, "idp_verification_failed", err, "failed to persist idp verification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleReturnToGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDialogReturnTo) {
		tooMany(w)
		return
	}
	sid := strings.TrimSpace(r.Header.Get(SessionHeader))
	if sid == "" {
		badRequest(w, "missing_session")
		return
	}
	target, ok, err := s.svc.Open("", coreSession(r.Context(), sid)).ReturnTo(r.Context())
	if err != nil {
		serverErrWithLog(w, r, "return_to_failed", err, "failed to load returnTo")
		return
	}
	if !ok {
		notFound(w, "return_to_not_set")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"return_to": target})
}
