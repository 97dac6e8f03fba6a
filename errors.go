package peermail

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrNoRecipients is returned when a mail names no recipient at all.
	ErrNoRecipients = errors.New("mail has no recipients")

	// ErrReplyNotFound is returned when reply_of does not resolve to a local mail.
	ErrReplyNotFound = errors.New("replied mail not found")

	// ErrAttachmentNotFound is returned when an attachment id is not a local file manifest.
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrMailNotFound is returned when an id does not resolve to a local mail.
	ErrMailNotFound = errors.New("mail not found")

	// ErrNotMail is returned when an id resolves to a record that is not a mail.
	ErrNotMail = errors.New("record is not a mail")

	// ErrUnknownPeer is returned when a peer cannot be found in the directory.
	ErrUnknownPeer = errors.New("unknown peer")

	// ErrAuthenticationFailed is returned when a received unit fails to open or verify.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAgentClosed is returned when operations are attempted on a closed agent.
	ErrAgentClosed = errors.New("agent has been closed")

	// ErrEmptyFile is returned when writing a file with no content.
	ErrEmptyFile = errors.New("file is empty")

	// ErrFileTooLarge is returned when a file exceeds the configured maximum size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileCorrupt is returned when reassembled chunks do not match the manifest.
	ErrFileCorrupt = errors.New("file content does not match manifest")

	// ErrInvalidHandle is returned for an empty or oversized handle.
	ErrInvalidHandle = errors.New("invalid handle")
)

// PeermailError is implemented by all typed errors of this package.
type PeermailError interface {
	error
	PeermailError() // marker method
}

// AuthenticationError reports a received unit that failed to open or verify.
// Stage is one of "decode", "recipient", "decrypt", "signature" or "sender".
type AuthenticationError struct {
	Stage string
	Err   error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("authentication failed at %s", e.Stage)
}

// Unwrap returns the underlying error.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// PeermailError implements the PeermailError interface.
func (e *AuthenticationError) PeermailError() {}

// TransportError reports a direct call that did not succeed.
type TransportError struct {
	Peer    AgentID
	Outcome Outcome
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("call to %s: %s: %v", e.Peer.Short(), e.Outcome, e.Err)
	}
	return fmt.Sprintf("call to %s: %s", e.Peer.Short(), e.Outcome)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// PeermailError implements the PeermailError interface.
func (e *TransportError) PeermailError() {}

// StorageError reports a failed log operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// PeermailError implements the PeermailError interface.
func (e *StorageError) PeermailError() {}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// PeermailError implements the PeermailError interface.
func (e *ValidationError) PeermailError() {}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
