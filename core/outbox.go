package core

import "context"

// EventName identifies a message leaving the dialog gate.
type EventName string

const (
	EventStart       EventName = "start"
	EventKPIData     EventName = "kpi_data"
	EventStartTime   EventName = "start_time"
	EventErrorScreen EventName = "error_screen"
)

// StartInfo is the sanitized parameter set handed to the rest of the dialog.
// Fields are only set when the matching option was supplied and valid.
type StartInfo struct {
	TermsOfService      string `json:"termsOfService,omitempty"`
	PrivacyPolicy       string `json:"privacyPolicy,omitempty"`
	SiteLogo            string `json:"siteLogo,omitempty"`
	SiteName            string `json:"siteName,omitempty"`
	BackgroundColor     string `json:"backgroundColor,omitempty"`
	ForceAuthentication bool   `json:"forceAuthentication,omitempty"`
	ForceIssuer         string `json:"forceIssuer,omitempty"`
	AllowUnverified     bool   `json:"allowUnverified,omitempty"`

	// Set only when resuming after a round trip to the identity provider.
	Type      string `json:"type,omitempty"`
	Email     string `json:"email,omitempty"`
	Add       *bool  `json:"add,omitempty"`
	Cancelled *bool  `json:"cancelled,omitempty"`
}

// KPIData reports which relying-party API opened the dialog.
type KPIData struct {
	RPAPI    string `json:"rp_api"`
	Orphaned bool   `json:"orphaned"`
}

// ErrorScreen is the payload of the user-visible error display.
type ErrorScreen struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Event is one entry of an Outcome. Payload is StartInfo, KPIData,
// int64 (start_time, ms since epoch) or ErrorScreen.
type Event struct {
	Name    EventName `json:"name"`
	Payload any       `json:"payload"`
}

// Outcome is the ordered outbox produced by a single Get call.
type Outcome struct {
	Events []Event `json:"events"`
}

// Publisher delivers outbox events to whatever bus the host uses.
type Publisher interface {
	Publish(ctx context.Context, name EventName, payload any) error
}

func (o *Outcome) emit(name EventName, payload any) {
	o.Events = append(o.Events, Event{Name: name, Payload: payload})
}

func (o Outcome) find(name EventName) (Event, bool) {
	for _, e := range o.Events {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}

// Start returns the start payload if the call succeeded.
func (o Outcome) Start() (StartInfo, bool) {
	e, ok := o.find(EventStart)
	if !ok {
		return StartInfo{}, false
	}
	info, ok := e.Payload.(StartInfo)
	return info, ok
}

// KPI returns the kpi_data payload, if any.
func (o Outcome) KPI() (KPIData, bool) {
	e, ok := o.find(EventKPIData)
	if !ok {
		return KPIData{}, false
	}
	d, ok := e.Payload.(KPIData)
	return d, ok
}

// StartTime returns the start_time payload, if any.
func (o Outcome) StartTime() (int64, bool) {
	e, ok := o.find(EventStartTime)
	if !ok {
		return 0, false
	}
	ms, ok := e.Payload.(int64)
	return ms, ok
}

// ErrorScreen returns the error display payload if the call failed.
func (o Outcome) ErrorScreen() (ErrorScreen, bool) {
	e, ok := o.find(EventErrorScreen)
	if !ok {
		return ErrorScreen{}, false
	}
	es, ok := e.Payload.(ErrorScreen)
	return es, ok
}

// Dispatch publishes every event in order and stops at the first error.
func (o Outcome) Dispatch(ctx context.Context, p Publisher) error {
	if p == nil {
		return nil
	}
	for _, e := range o.Events {
		if err := p.Publish(ctx, e.Name, e.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Err rebuilds the validation failure carried by an error_screen event.
func (o Outcome) Err() error {
	es, ok := o.ErrorScreen()
	if !ok {
		return nil
	}
	return &ValidationError{Field: es.Field, Message: es.Message}
}
