package service

import "errors"

var (
	// ErrConfigurationMissing means at least one connection setting is empty.
	ErrConfigurationMissing = errors.New("connection settings missing")
	// ErrNoActingUser means a creation event carried no user.
	ErrNoActingUser = errors.New("no acting user in issue event")
	// ErrFieldBindingMissing means the Develop or Review field is not available on the issue.
	ErrFieldBindingMissing = errors.New("develop or review field not available")
	// ErrAuthenticationFailed means no session could be obtained.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrResourceNotFound means a factory search returned nothing.
	ErrResourceNotFound = errors.New("factory not found")
	// ErrLinkMissing means a created factory has no accept-named link.
	ErrLinkMissing = errors.New("factory link missing")
	// ErrValidationFailed means the issue tracker rejected the field update.
	ErrValidationFailed = errors.New("issue update validation failed")
	// ErrTransport wraps I/O failures of remote calls.
	ErrTransport = errors.New("remote call failed")
)
