package core

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// AuthLevelAssertion is the session level reached after an identity provider
// assertion was verified.
const AuthLevelAssertion = "assertion"

// Session describes who is driving a dialog. The zero value is an
// anonymous session.
type Session struct {
	ID            string
	Authenticated bool
	AuthLevel     string
}

// PrimaryAddressRecorder tells the backend that an email was just used as a
// primary (identity-provider backed) address. Calls are fire-and-forget.
type PrimaryAddressRecorder interface {
	RecordUsedAddressAsPrimary(ctx context.Context, email string) error
}

// Service holds the policy and collaborators shared by every dialog.
type Service struct {
	cfg            Config
	ephemeralStore EphemeralStore
	ephemeralMode  EphemeralMode
	recorder       PrimaryAddressRecorder
	logger         *log.Logger
}

// NewService validates cfg (after applying defaults) and returns a Service
// with no collaborators attached.
func NewService(cfg Config) (*Service, error) {
	norm, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	return &Service{cfg: norm, logger: log.StandardLogger()}, nil
}

func (s *Service) WithPrimaryAddressRecorder(r PrimaryAddressRecorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) WithLogger(l *log.Logger) *Service {
	if l == nil {
		l = log.StandardLogger()
	}
	s.logger = l
	return s
}

func (s *Service) Config() Config { return s.cfg }

func (s *Service) HasPrimaryAddressRecorder() bool { return s != nil && s.recorder != nil }

func (s *Service) entry(ctx context.Context, sessionID string) *log.Entry {
	return s.logger.WithContext(ctx).WithField("session", sessionID)
}

// Open starts one dialog lifecycle. fragment is the URL hash the dialog
// window was opened with.
func (s *Service) Open(fragment string, sess Session) *Dialog {
	if strings.TrimSpace(sess.ID) == "" {
		sess.ID = uuid.NewString()
	}
	return &Dialog{
		svc:     s,
		session: sess,
		marker:  ParseMarker(fragment),
	}
}
