package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	Status       string
	IsPremium    bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type GuideModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Subtitle    string
	Image       string
	Overview    string `gorm:"type:text"`
	Category    string `gorm:"index"`
	Tags        datatypes.JSON
	Price       int64 `gorm:"not null"`
	Rating      float64
	RatingCount int
	Pages       int
	Status      string `gorm:"not null"`
	PdfURL      string
	PdfFileID   string
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type PdfFileModel struct {
	ID           string `gorm:"primaryKey"`
	GuideID      string `gorm:"not null;index"`
	OriginalName string `gorm:"not null"`
	MimeType     string `gorm:"not null"`
	SizeBytes    int64  `gorm:"not null"`
	StorageKey   string `gorm:"not null"`
	Pages        int
	CreatedAt    time.Time `gorm:"not null"`
}

type PaymentModel struct {
	ID        string `gorm:"primaryKey"`
	OrderID   string `gorm:"uniqueIndex;not null"`
	PaymentID string
	Signature string
	Amount    int64  `gorm:"not null"`
	Currency  string `gorm:"not null"`
	Status    string `gorm:"not null"`
	UserID    string `gorm:"not null;index"`
	GuideID   string `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// PurchaseModel rows are never deleted. The composite unique index makes
// confirmation idempotent under concurrent requests.
type PurchaseModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;uniqueIndex:ux_purchases_user_guide,priority:1"`
	GuideID   string `gorm:"not null;uniqueIndex:ux_purchases_user_guide,priority:2"`
	Amount    int64  `gorm:"not null"`
	PaymentID string
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type CourseModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Thumbnail   string
	IsPaid      bool
	Price       int64
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type LessonModel struct {
	ID          string `gorm:"primaryKey"`
	CourseID    string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Duration    int
	IsPremium   bool
	VideoKey    string
	NotesKey    string
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}
