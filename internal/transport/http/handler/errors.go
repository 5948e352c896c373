package handler

const (
	errInternalServer     = "Internal server error"
	errInvalidCredentials = "Invalid username or password"
	errTokenInvalid       = "Token is invalid or expired"
	errUnauthorized       = "Unauthorized"

	// ackForgotPassword is returned whether or not the account exists.
	ackForgotPassword = "If that account exists, a reset link is on its way"
)
