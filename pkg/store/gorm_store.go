package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"guidehub/pkg/domain"
)

const migrateLockID int64 = 48112031

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&GuideModel{},
			&PdfFileModel{},
			&PaymentModel{},
			&PurchaseModel{},
			&CourseModel{},
			&LessonModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role", "status", "is_premium", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// SaveGuide stores or updates a guide.
func (s *GormStore) SaveGuide(g domain.Guide) error {
	model := guideToModel(g)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "subtitle", "image", "overview", "category", "tags",
			"price", "rating", "rating_count", "pages", "status",
			"pdf_url", "pdf_file_id", "updated_at",
		}),
	}).Create(&model).Error
}

// SetGuideStatus updates processing status and page count.
func (s *GormStore) SetGuideStatus(id string, status domain.GuideStatus, pages int) error {
	updates := map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if pages > 0 {
		updates["pages"] = pages
	}
	return s.db.Model(&GuideModel{}).Where("id = ?", id).Updates(updates).Error
}

// ListGuides returns all guides ordered by created_at.
func (s *GormStore) ListGuides() ([]domain.Guide, error) {
	var models []GuideModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Guide, 0, len(models))
	for _, m := range models {
		res = append(res, guideFromModel(m))
	}
	return res, nil
}

// GetGuide retrieves a guide.
func (s *GormStore) GetGuide(id string) (domain.Guide, bool, error) {
	var model GuideModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Guide{}, false, nil
		}
		return domain.Guide{}, false, err
	}
	return guideFromModel(model), true, nil
}

// DeleteGuide removes a guide and its attached PDF records.
// Purchases are the sales ledger and are kept.
func (s *GormStore) DeleteGuide(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&PdfFileModel{}, "guide_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&GuideModel{}, "id = ?", id).Error
	})
}

// SavePdfFile records an uploaded PDF.
func (s *GormStore) SavePdfFile(f domain.PdfFile) error {
	model := pdfFileToModel(f)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"pages"}),
	}).Create(&model).Error
}

// GetPdfFile returns an uploaded PDF record by ID.
func (s *GormStore) GetPdfFile(id string) (domain.PdfFile, bool, error) {
	var model PdfFileModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.PdfFile{}, false, nil
		}
		return domain.PdfFile{}, false, err
	}
	return pdfFileFromModel(model), true, nil
}

// SavePayment records a new gateway order attempt.
func (s *GormStore) SavePayment(p domain.Payment) error {
	model := paymentToModel(p)
	return s.db.Create(&model).Error
}

// GetPaymentByOrderID returns the payment row for a gateway order.
func (s *GormStore) GetPaymentByOrderID(orderID string) (domain.Payment, bool, error) {
	var model PaymentModel
	if err := s.db.Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Payment{}, false, nil
		}
		return domain.Payment{}, false, err
	}
	return paymentFromModel(model), true, nil
}

// MarkPaymentPaid moves a payment from created to paid.
// The status filter keeps the created->paid transition one-way.
func (s *GormStore) MarkPaymentPaid(orderID, paymentID, signature string) error {
	return s.db.Model(&PaymentModel{}).
		Where("order_id = ? AND status = ?", orderID, string(domain.PaymentCreated)).
		Updates(map[string]any{
			"payment_id": paymentID,
			"signature":  signature,
			"status":     string(domain.PaymentPaid),
			"updated_at": time.Now().UTC(),
		}).Error
}

// MarkPaymentFailed moves a payment from created to failed.
func (s *GormStore) MarkPaymentFailed(orderID string) error {
	return s.db.Model(&PaymentModel{}).
		Where("order_id = ? AND status = ?", orderID, string(domain.PaymentCreated)).
		Updates(map[string]any{
			"status":     string(domain.PaymentFailed),
			"updated_at": time.Now().UTC(),
		}).Error
}

// AddPurchase inserts a completed purchase. When a row for (user, guide)
// already exists the insert is a no-op and the existing row is returned;
// the second return value reports whether a new row was created.
func (s *GormStore) AddPurchase(p domain.Purchase) (domain.Purchase, bool, error) {
	model := purchaseToModel(p)
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "guide_id"}},
		DoNothing: true,
	}).Create(&model)
	if res.Error != nil {
		return domain.Purchase{}, false, res.Error
	}
	if res.RowsAffected > 0 {
		return purchaseFromModel(model), true, nil
	}
	var existing PurchaseModel
	if err := s.db.Where("user_id = ? AND guide_id = ?", p.UserID, p.GuideID).First(&existing).Error; err != nil {
		return domain.Purchase{}, false, err
	}
	return purchaseFromModel(existing), false, nil
}

// GetCompletedPurchase returns the completed ledger row for (user, guide).
func (s *GormStore) GetCompletedPurchase(userID, guideID string) (domain.Purchase, bool, error) {
	var model PurchaseModel
	err := s.db.
		Where("user_id = ? AND guide_id = ? AND status = ?", userID, guideID, string(domain.PurchaseCompleted)).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Purchase{}, false, nil
		}
		return domain.Purchase{}, false, err
	}
	return purchaseFromModel(model), true, nil
}

// ListPurchasesByUser returns all ledger rows for a user.
func (s *GormStore) ListPurchasesByUser(userID string) ([]domain.Purchase, error) {
	var models []PurchaseModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Purchase, 0, len(models))
	for _, m := range models {
		res = append(res, purchaseFromModel(m))
	}
	return res, nil
}

// ListPurchaserIDs rebuilds the purchasedBy projection from the ledger.
func (s *GormStore) ListPurchaserIDs(guideID string) ([]string, error) {
	var ids []string
	err := s.db.Model(&PurchaseModel{}).
		Where("guide_id = ? AND status = ?", guideID, string(domain.PurchaseCompleted)).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveCourse stores or updates a course.
func (s *GormStore) SaveCourse(c domain.Course) error {
	model := courseToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "thumbnail", "is_paid", "price", "updated_at"}),
	}).Create(&model).Error
}

// ListCourses returns all courses without lessons.
func (s *GormStore) ListCourses() ([]domain.Course, error) {
	var models []CourseModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Course, 0, len(models))
	for _, m := range models {
		res = append(res, courseFromModel(m))
	}
	return res, nil
}

// GetCourse retrieves a course with its lessons.
func (s *GormStore) GetCourse(id string) (domain.Course, bool, error) {
	var model CourseModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Course{}, false, nil
		}
		return domain.Course{}, false, err
	}
	course := courseFromModel(model)
	lessons, err := s.ListLessonsByCourse(id)
	if err != nil {
		return domain.Course{}, false, err
	}
	course.Lessons = lessons
	return course, true, nil
}

// DeleteCourse removes a course and its lessons.
func (s *GormStore) DeleteCourse(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&LessonModel{}, "course_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&CourseModel{}, "id = ?", id).Error
	})
}

// SaveLesson stores or updates a lesson.
func (s *GormStore) SaveLesson(l domain.Lesson) error {
	model := lessonToModel(l)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "duration", "is_premium", "video_key", "notes_key", "updated_at"}),
	}).Create(&model).Error
}

// GetLesson retrieves a lesson.
func (s *GormStore) GetLesson(id string) (domain.Lesson, bool, error) {
	var model LessonModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Lesson{}, false, nil
		}
		return domain.Lesson{}, false, err
	}
	return lessonFromModel(model), true, nil
}

// ListLessonsByCourse returns lessons of a course in creation order.
func (s *GormStore) ListLessonsByCourse(courseID string) ([]domain.Lesson, error) {
	var models []LessonModel
	if err := s.db.Where("course_id = ?", courseID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Lesson, 0, len(models))
	for _, m := range models {
		res = append(res, lessonFromModel(m))
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		IsPremium:    u.IsPremium,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	status := domain.UserStatus(m.Status)
	if status == "" {
		status = domain.StatusActive
	}
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       status,
		IsPremium:    m.IsPremium,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func guideToModel(g domain.Guide) GuideModel {
	tags, _ := json.Marshal(g.Tags)
	return GuideModel{
		ID:          g.ID,
		Title:       g.Title,
		Subtitle:    g.Subtitle,
		Image:       g.Image,
		Overview:    g.Overview,
		Category:    g.Category,
		Tags:        tags,
		Price:       g.Price,
		Rating:      g.Rating,
		RatingCount: g.RatingCount,
		Pages:       g.Pages,
		Status:      string(g.Status),
		PdfURL:      g.PdfURL,
		PdfFileID:   g.PdfFileID,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func guideFromModel(m GuideModel) domain.Guide {
	var tags []string
	if len(m.Tags) > 0 {
		_ = json.Unmarshal(m.Tags, &tags)
	}
	status := domain.GuideStatus(m.Status)
	if status == "" {
		status = domain.GuideDraft
	}
	return domain.Guide{
		ID:          m.ID,
		Title:       m.Title,
		Subtitle:    m.Subtitle,
		Image:       m.Image,
		Overview:    m.Overview,
		Category:    m.Category,
		Tags:        tags,
		Price:       m.Price,
		Rating:      m.Rating,
		RatingCount: m.RatingCount,
		Pages:       m.Pages,
		Status:      status,
		PdfURL:      m.PdfURL,
		PdfFileID:   m.PdfFileID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func pdfFileToModel(f domain.PdfFile) PdfFileModel {
	return PdfFileModel{
		ID:           f.ID,
		GuideID:      f.GuideID,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		SizeBytes:    f.SizeBytes,
		StorageKey:   f.StorageKey,
		Pages:        f.Pages,
		CreatedAt:    f.CreatedAt,
	}
}

func pdfFileFromModel(m PdfFileModel) domain.PdfFile {
	return domain.PdfFile{
		ID:           m.ID,
		GuideID:      m.GuideID,
		OriginalName: m.OriginalName,
		MimeType:     m.MimeType,
		SizeBytes:    m.SizeBytes,
		StorageKey:   m.StorageKey,
		Pages:        m.Pages,
		CreatedAt:    m.CreatedAt,
	}
}

func paymentToModel(p domain.Payment) PaymentModel {
	return PaymentModel{
		ID:        p.ID,
		OrderID:   p.OrderID,
		PaymentID: p.PaymentID,
		Signature: p.Signature,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    string(p.Status),
		UserID:    p.UserID,
		GuideID:   p.GuideID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func paymentFromModel(m PaymentModel) domain.Payment {
	return domain.Payment{
		ID:        m.ID,
		OrderID:   m.OrderID,
		PaymentID: m.PaymentID,
		Signature: m.Signature,
		Amount:    m.Amount,
		Currency:  m.Currency,
		Status:    domain.PaymentStatus(m.Status),
		UserID:    m.UserID,
		GuideID:   m.GuideID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func purchaseToModel(p domain.Purchase) PurchaseModel {
	return PurchaseModel{
		ID:        p.ID,
		UserID:    p.UserID,
		GuideID:   p.GuideID,
		Amount:    p.Amount,
		PaymentID: p.PaymentID,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
	}
}

func purchaseFromModel(m PurchaseModel) domain.Purchase {
	return domain.Purchase{
		ID:        m.ID,
		UserID:    m.UserID,
		GuideID:   m.GuideID,
		Amount:    m.Amount,
		PaymentID: m.PaymentID,
		Status:    domain.PurchaseStatus(m.Status),
		CreatedAt: m.CreatedAt,
	}
}

func courseToModel(c domain.Course) CourseModel {
	return CourseModel{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Thumbnail:   c.Thumbnail,
		IsPaid:      c.IsPaid,
		Price:       c.Price,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func courseFromModel(m CourseModel) domain.Course {
	return domain.Course{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Thumbnail:   m.Thumbnail,
		IsPaid:      m.IsPaid,
		Price:       m.Price,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func lessonToModel(l domain.Lesson) LessonModel {
	return LessonModel{
		ID:          l.ID,
		CourseID:    l.CourseID,
		Title:       l.Title,
		Description: l.Description,
		Duration:    l.Duration,
		IsPremium:   l.IsPremium,
		VideoKey:    l.VideoKey,
		NotesKey:    l.NotesKey,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func lessonFromModel(m LessonModel) domain.Lesson {
	return domain.Lesson{
		ID:          m.ID,
		CourseID:    m.CourseID,
		Title:       m.Title,
		Description: m.Description,
		Duration:    m.Duration,
		IsPremium:   m.IsPremium,
		VideoKey:    m.VideoKey,
		NotesKey:    m.NotesKey,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
