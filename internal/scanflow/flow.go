// Package scanflow models the QR-scan-to-profile handshake as an
// explicit state machine. The camera/decoder is an external
// collaborator; all this package ever sees is the decoded string.
package scanflow

import (
	"errors"
	"strings"

	"github.com/wardtools/wardprogram/pkg/sheet"
)

type State int

const (
	Idle State = iota
	Scanning
	PendingConfirmation
	Committed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case PendingConfirmation:
		return "pendingConfirmation"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

var (
	// ErrInvalidCode is surfaced to the user as the "invalid code"
	// message; session state stays untouched.
	ErrInvalidCode = errors.New("scanned code is not a meeting program link")

	ErrNotScanning   = errors.New("no scan in progress")
	ErrNoCandidate   = errors.New("nothing scanned yet")
	ErrAlreadyActive = errors.New("a scan is already in progress")
)

// Candidate is a vetted source waiting for user confirmation.
type Candidate struct {
	URL string
}

// Flow tracks one scan session. Zero value is Idle.
type Flow struct {
	state     State
	candidate Candidate
}

func (f *Flow) State() State { return f.state }

// Candidate returns the pending candidate; only meaningful in
// PendingConfirmation.
func (f *Flow) Candidate() Candidate { return f.candidate }

// Begin starts a scan session. Finished sessions may be restarted.
func (f *Flow) Begin() error {
	switch f.state {
	case Scanning, PendingConfirmation:
		return ErrAlreadyActive
	}
	f.state = Scanning
	f.candidate = Candidate{}
	return nil
}

// Decoded feeds a decoded QR string into the flow. Invalid strings
// leave the flow in Scanning so the camera keeps trying; valid sheet
// URLs move to PendingConfirmation.
func (f *Flow) Decoded(raw string) error {
	if f.state != Scanning {
		return ErrNotScanning
	}

	url := strings.TrimSpace(raw)
	if !sheet.IsSheetURL(url) {
		return ErrInvalidCode
	}

	f.candidate = Candidate{URL: url}
	f.state = PendingConfirmation
	return nil
}

// Confirm commits the pending candidate. The caller is expected to
// load it, which creates or updates its profile.
func (f *Flow) Confirm() (Candidate, error) {
	if f.state != PendingConfirmation {
		return Candidate{}, ErrNoCandidate
	}
	f.state = Committed
	return f.candidate, nil
}

// Cancel abandons the session from any active state.
func (f *Flow) Cancel() {
	f.state = Cancelled
	f.candidate = Candidate{}
}
