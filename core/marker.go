package core

import "strings"

// Marker classifies the URL fragment the dialog window was opened with.
type Marker string

const (
	MarkerNone             Marker = "none"
	MarkerChannel          Marker = "channel"
	MarkerNative           Marker = "native"
	MarkerInternal         Marker = "internal"
	MarkerAuthReturn       Marker = "auth_return"
	MarkerAuthReturnCancel Marker = "auth_return_cancel"
)

// ParseMarker maps a fragment such as "#AUTH_RETURN" to a Marker. Any other
// non-empty fragment is treated as a channel identifier.
func ParseMarker(fragment string) Marker {
	f := strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	switch {
	case f == "":
		return MarkerNone
	// Checked before AUTH_RETURN since it shares the prefix.
	case strings.HasPrefix(f, "AUTH_RETURN_CANCEL"):
		return MarkerAuthReturnCancel
	case strings.HasPrefix(f, "AUTH_RETURN"):
		return MarkerAuthReturn
	case f == "NATIVE":
		return MarkerNative
	case f == "INTERNAL":
		return MarkerInternal
	}
	return MarkerChannel
}

// Resuming reports whether the dialog is returning from an identity provider.
func (m Marker) Resuming() bool {
	return m == MarkerAuthReturn || m == MarkerAuthReturnCancel
}
