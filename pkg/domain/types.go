package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

// GuideStatus tracks PDF attachment processing.
type GuideStatus string

const (
	GuideDraft      GuideStatus = "draft"
	GuideProcessing GuideStatus = "processing"
	GuideReady      GuideStatus = "ready"
	GuideFailed     GuideStatus = "failed"
)

type PaymentStatus string

const (
	PaymentCreated  PaymentStatus = "created"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
)

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	IsPremium    bool       `json:"isPremium"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Guide is a purchasable PDF document.
// Price is in whole currency units; gateway orders convert to minor units.
// PurchasedBy is a read-only projection rebuilt from the purchase ledger.
type Guide struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Subtitle    string      `json:"subtitle,omitempty"`
	Image       string      `json:"image,omitempty"`
	Overview    string      `json:"overview,omitempty"`
	Category    string      `json:"category,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Price       int64       `json:"price"`
	Rating      float64     `json:"rating"`
	RatingCount int         `json:"ratingCount"`
	Pages       int         `json:"pages,omitempty"`
	Status      GuideStatus `json:"status"`
	PdfURL      string      `json:"-"`
	PdfFileID   string      `json:"-"`
	PurchasedBy []string    `json:"purchasedBy,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// PdfFile is an uploaded document attached to a guide. Immutable after upload.
type PdfFile struct {
	ID           string    `json:"id"`
	GuideID      string    `json:"guideId"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	StorageKey   string    `json:"-"`
	Pages        int       `json:"pages,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Payment records one gateway order attempt.
// Amount is in minor currency units (paise).
type Payment struct {
	ID        string        `json:"id"`
	OrderID   string        `json:"orderId"`
	PaymentID string        `json:"paymentId,omitempty"`
	Signature string        `json:"-"`
	Amount    int64         `json:"amount"`
	Currency  string        `json:"currency"`
	Status    PaymentStatus `json:"status"`
	UserID    string        `json:"userId"`
	GuideID   string        `json:"guideId"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Purchase is the authoritative record of a completed (user, guide) sale.
type Purchase struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	GuideID   string         `json:"guideId"`
	Amount    int64          `json:"amount"`
	PaymentID string         `json:"paymentId,omitempty"`
	Status    PurchaseStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	IsPaid      bool      `json:"isPaid"`
	Price       int64     `json:"price"`
	Lessons     []Lesson  `json:"lessons,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Lesson metadata is public; VideoKey and NotesKey never leave the server,
// clients get time-limited presigned URLs instead.
type Lesson struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"courseId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Duration    int       `json:"duration,omitempty"`
	IsPremium   bool      `json:"isPremium"`
	VideoKey    string    `json:"-"`
	NotesKey    string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
