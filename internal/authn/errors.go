package authn

import "errors"

// Login and token error taxonomy. Handlers convert these to responses at
// the boundary; anything else is an infrastructure failure.
var (
	// ErrBadCredentials covers both an unknown identifier and a wrong secret.
	// The two cases are deliberately indistinguishable to the caller.
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrMissingCredentials means neither a password nor a code was supplied.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrUnverifiedChannel means the login channel has not been verified.
	ErrUnverifiedChannel = errors.New("channel not verified")
	// ErrAccountAutoLocked means the account is locked by the failure threshold.
	ErrAccountAutoLocked = errors.New("account locked")
	// ErrAccountAdminLocked means the account is locked by an administrator.
	ErrAccountAdminLocked = errors.New("account locked by administrator")
	// ErrAccountJustLocked is returned exactly on the attempt that crossed the
	// lockout threshold.
	ErrAccountJustLocked = errors.New("account just locked")
	// ErrPhoneNotFound means no account matches the supplied phone number.
	ErrPhoneNotFound = errors.New("phone number not found")
	// ErrRefreshNotEnabled means refresh token support is disabled by configuration.
	ErrRefreshNotEnabled = errors.New("refresh tokens not enabled")
	// ErrUserMissingForToken means a structurally valid token references no user.
	ErrUserMissingForToken = errors.New("user missing for token")
	// ErrSecondFactorRequired means primary authentication succeeded but a
	// hardware-credential round trip must complete before sign-in.
	ErrSecondFactorRequired = errors.New("second factor required")
	// ErrPendingLoginExpired means the awaiting-second-factor state lapsed or
	// was never created.
	ErrPendingLoginExpired = errors.New("pending login expired")
)
