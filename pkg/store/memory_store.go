package store

import (
	"sync"
	"time"

	"guidehub/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development; semantics mirror GormStore, including the purchase
// uniqueness guarantee.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	email      map[string]string // email -> user ID
	guides     map[string]domain.Guide
	guideOrder []string
	pdfFiles   map[string]domain.PdfFile
	payments   map[string]domain.Payment // orderID -> payment
	purchases  map[string]domain.Purchase
	purchased  map[[2]string]string // (userID, guideID) -> purchase ID
	courses    map[string]domain.Course
	lessons    map[string]domain.Lesson
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		email:     make(map[string]string),
		guides:    make(map[string]domain.Guide),
		pdfFiles:  make(map[string]domain.PdfFile),
		payments:  make(map[string]domain.Payment),
		purchases: make(map[string]domain.Purchase),
		purchased: make(map[[2]string]string),
		courses:   make(map[string]domain.Course),
		lessons:   make(map[string]domain.Lesson),
	}
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns all users.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	return res, nil
}

// SaveGuide stores or replaces a guide and tracks insertion order.
func (m *MemoryStore) SaveGuide(g domain.Guide) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.guides[g.ID]; !exists {
		m.guideOrder = append(m.guideOrder, g.ID)
	}
	g.PurchasedBy = nil
	m.guides[g.ID] = g
	return nil
}

// SetGuideStatus updates processing status and page count.
func (m *MemoryStore) SetGuideStatus(id string, status domain.GuideStatus, pages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guides[id]
	if !ok {
		return nil
	}
	g.Status = status
	if pages > 0 {
		g.Pages = pages
	}
	g.UpdatedAt = time.Now().UTC()
	m.guides[id] = g
	return nil
}

// ListGuides returns guides in insertion order.
func (m *MemoryStore) ListGuides() ([]domain.Guide, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Guide, 0, len(m.guideOrder))
	for _, id := range m.guideOrder {
		if g, ok := m.guides[id]; ok {
			res = append(res, g)
		}
	}
	return res, nil
}

// GetGuide retrieves a guide by ID.
func (m *MemoryStore) GetGuide(id string) (domain.Guide, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guides[id]
	return g, ok, nil
}

// DeleteGuide removes a guide and its PDF records.
func (m *MemoryStore) DeleteGuide(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.guides, id)
	for fid, f := range m.pdfFiles {
		if f.GuideID == id {
			delete(m.pdfFiles, fid)
		}
	}
	filtered := m.guideOrder[:0]
	for _, item := range m.guideOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.guideOrder = filtered
	return nil
}

// SavePdfFile records an uploaded PDF.
func (m *MemoryStore) SavePdfFile(f domain.PdfFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdfFiles[f.ID] = f
	return nil
}

// GetPdfFile returns an uploaded PDF record by ID.
func (m *MemoryStore) GetPdfFile(id string) (domain.PdfFile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.pdfFiles[id]
	return f, ok, nil
}

// SavePayment records a new gateway order attempt.
func (m *MemoryStore) SavePayment(p domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.OrderID] = p
	return nil
}

// GetPaymentByOrderID returns the payment row for a gateway order.
func (m *MemoryStore) GetPaymentByOrderID(orderID string) (domain.Payment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[orderID]
	return p, ok, nil
}

// MarkPaymentPaid moves a payment from created to paid.
func (m *MemoryStore) MarkPaymentPaid(orderID, paymentID, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok || p.Status != domain.PaymentCreated {
		return nil
	}
	p.PaymentID = paymentID
	p.Signature = signature
	p.Status = domain.PaymentPaid
	p.UpdatedAt = time.Now().UTC()
	m.payments[orderID] = p
	return nil
}

// MarkPaymentFailed moves a payment from created to failed.
func (m *MemoryStore) MarkPaymentFailed(orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok || p.Status != domain.PaymentCreated {
		return nil
	}
	p.Status = domain.PaymentFailed
	p.UpdatedAt = time.Now().UTC()
	m.payments[orderID] = p
	return nil
}

// AddPurchase inserts a purchase unless one exists for (user, guide).
func (m *MemoryStore) AddPurchase(p domain.Purchase) (domain.Purchase, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{p.UserID, p.GuideID}
	if existingID, ok := m.purchased[key]; ok {
		return m.purchases[existingID], false, nil
	}
	m.purchases[p.ID] = p
	m.purchased[key] = p.ID
	return p, true, nil
}

// GetCompletedPurchase returns the completed ledger row for (user, guide).
func (m *MemoryStore) GetCompletedPurchase(userID, guideID string) (domain.Purchase, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.purchased[[2]string{userID, guideID}]
	if !ok {
		return domain.Purchase{}, false, nil
	}
	p := m.purchases[id]
	if p.Status != domain.PurchaseCompleted {
		return domain.Purchase{}, false, nil
	}
	return p, true, nil
}

// ListPurchasesByUser returns all ledger rows for a user.
func (m *MemoryStore) ListPurchasesByUser(userID string) ([]domain.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Purchase, 0)
	for _, p := range m.purchases {
		if p.UserID == userID {
			res = append(res, p)
		}
	}
	return res, nil
}

// ListPurchaserIDs rebuilds the purchasedBy projection from the ledger.
func (m *MemoryStore) ListPurchaserIDs(guideID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]string, 0)
	for _, p := range m.purchases {
		if p.GuideID == guideID && p.Status == domain.PurchaseCompleted {
			res = append(res, p.UserID)
		}
	}
	return res, nil
}

// SaveCourse stores or updates a course.
func (m *MemoryStore) SaveCourse(c domain.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Lessons = nil
	m.courses[c.ID] = c
	return nil
}

// ListCourses returns all courses without lessons.
func (m *MemoryStore) ListCourses() ([]domain.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Course, 0, len(m.courses))
	for _, c := range m.courses {
		res = append(res, c)
	}
	return res, nil
}

// GetCourse retrieves a course with its lessons.
func (m *MemoryStore) GetCourse(id string) (domain.Course, bool, error) {
	m.mu.RLock()
	c, ok := m.courses[id]
	m.mu.RUnlock()
	if !ok {
		return domain.Course{}, false, nil
	}
	lessons, err := m.ListLessonsByCourse(id)
	if err != nil {
		return domain.Course{}, false, err
	}
	c.Lessons = lessons
	return c, true, nil
}

// DeleteCourse removes a course and its lessons.
func (m *MemoryStore) DeleteCourse(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.courses, id)
	for lid, l := range m.lessons {
		if l.CourseID == id {
			delete(m.lessons, lid)
		}
	}
	return nil
}

// SaveLesson stores or updates a lesson.
func (m *MemoryStore) SaveLesson(l domain.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lessons[l.ID] = l
	return nil
}

// GetLesson retrieves a lesson.
func (m *MemoryStore) GetLesson(id string) (domain.Lesson, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lessons[id]
	return l, ok, nil
}

// ListLessonsByCourse returns lessons of a course sorted by creation time.
func (m *MemoryStore) ListLessonsByCourse(courseID string) ([]domain.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Lesson, 0)
	for _, l := range m.lessons {
		if l.CourseID == courseID {
			res = append(res, l)
		}
	}
	for i := 1; i < len(res); i++ {
		for j := i; j > 0 && res[j].CreatedAt.Before(res[j-1].CreatedAt); j-- {
			res[j], res[j-1] = res[j-1], res[j]
		}
	}
	return res, nil
}
