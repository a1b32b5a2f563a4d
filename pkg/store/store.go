package store

import (
	"errors"

	"guidehub/pkg/domain"
)

// ErrDuplicateEmail indicates the email is already registered.
var ErrDuplicateEmail = errors.New("email already exists")

// Store defines persistence operations for users, guides, payments,
// purchases, and the course catalog.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)

	// guides
	SaveGuide(domain.Guide) error
	SetGuideStatus(id string, status domain.GuideStatus, pages int) error
	ListGuides() ([]domain.Guide, error)
	GetGuide(id string) (domain.Guide, bool, error)
	DeleteGuide(id string) error

	// pdf files
	SavePdfFile(domain.PdfFile) error
	GetPdfFile(id string) (domain.PdfFile, bool, error)

	// payments
	SavePayment(domain.Payment) error
	GetPaymentByOrderID(orderID string) (domain.Payment, bool, error)
	MarkPaymentPaid(orderID, paymentID, signature string) error
	MarkPaymentFailed(orderID string) error

	// purchase ledger
	AddPurchase(domain.Purchase) (domain.Purchase, bool, error)
	GetCompletedPurchase(userID, guideID string) (domain.Purchase, bool, error)
	ListPurchasesByUser(userID string) ([]domain.Purchase, error)
	ListPurchaserIDs(guideID string) ([]string, error)

	// courses & lessons
	SaveCourse(domain.Course) error
	ListCourses() ([]domain.Course, error)
	GetCourse(id string) (domain.Course, bool, error)
	DeleteCourse(id string) error
	SaveLesson(domain.Lesson) error
	GetLesson(id string) (domain.Lesson, bool, error)
	ListLessonsByCourse(courseID string) ([]domain.Lesson, error)
}

// SessionStore issues and validates session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
