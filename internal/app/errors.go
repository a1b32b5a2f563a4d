package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The message is shown to end users and must not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	// ErrUserDisabled is returned when an account is disabled.
	// Handlers should NOT expose this to clients to avoid account enumeration.
	ErrUserDisabled = errors.New("user disabled")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrEmailRequired            = errors.New("email required")

	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")

	ErrGuideNotFound    = errors.New("guide not found")
	ErrCourseNotFound   = errors.New("course not found")
	ErrLessonNotFound   = errors.New("lesson not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrPurchaseRequired = errors.New("guide not purchased")
	ErrPremiumRequired  = errors.New("premium subscription required")

	ErrOrderCreationFailed  = errors.New("order creation failed")
	ErrVerificationFailed   = errors.New("payment verification failed")
	ErrOrderNotFound        = errors.New("payment order not found")
	ErrPdfSourceMissing     = errors.New("no pdf source for guide")
	ErrPdfFetchFailed       = errors.New("pdf fetch failed")
	ErrPresignFailed        = errors.New("content url signing failed")
	ErrInvalidPdfUpload     = errors.New("only pdf uploads are accepted")
	ErrValidation           = errors.New("validation failed")
	ErrLessonContentMissing = errors.New("lesson has no content")
)
