package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"guidehub/internal/app"
	"guidehub/internal/razorpay"
	"guidehub/pkg/domain"
	"guidehub/pkg/storage"
	"guidehub/pkg/store"
)

const testKeySecret = "rzp_test_secret"

type testEnv struct {
	server  *httptest.Server
	store   *store.MemoryStore
	objects *storage.MemoryObjectStore
	app     *app.App
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	dataStore := store.NewMemoryStore()
	objects := storage.NewMemoryObjectStore()

	gatewaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req razorpay.OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_e2e1",
			"amount":   req.Amount,
			"currency": req.Currency,
			"receipt":  req.Receipt,
			"status":   "created",
		})
	}))
	t.Cleanup(gatewaySrv.Close)

	appCore, err := app.New(app.Config{
		JWTSecret:         "test-secret",
		SessionTTL:        time.Minute,
		RefreshTTL:        time.Hour,
		RazorpayKeySecret: testKeySecret,
		Store:             dataStore,
		Objects:           objects,
		Gateway:           razorpay.NewClient("rzp_test_key", testKeySecret, gatewaySrv.URL),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	redis := miniredis.RunT(t)
	cfg.App = appCore
	cfg.RedisAddr = redis.Addr()
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, store: dataStore, objects: objects, app: appCore}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// registerUser signs up through the API and returns the user and access token.
func (e *testEnv) registerUser(t *testing.T, name, email string) (domain.User, string) {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "guide2024",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, resp.StatusCode)
	}
	var body authResponse
	decodeJSON(t, resp, &body)
	return body.User, body.Token
}

// registerAdmin signs up a user then grants the admin role directly in the store.
func (e *testEnv) registerAdmin(t *testing.T, email string) (domain.User, string) {
	t.Helper()
	user, token := e.registerUser(t, "Admin", email)
	stored, ok, err := e.store.GetUserByID(user.ID)
	if err != nil || !ok {
		t.Fatalf("fetch registered admin: ok=%v err=%v", ok, err)
	}
	stored.Role = domain.RoleAdmin
	if err := e.store.SaveUser(stored); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	return stored, token
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{})
	resp := env.request(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, Config{})
	user, token := env.registerUser(t, "Asha", "asha@example.com")
	if user.Email != "asha@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	resp := env.request(t, http.MethodGet, "/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d", resp.StatusCode)
	}
	var me domain.User
	decodeJSON(t, resp, &me)
	if me.ID != user.ID {
		t.Fatalf("me returned wrong user")
	}

	resp = env.request(t, http.MethodGet, "/api/users/me", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "asha@example.com", "password": "guide2024",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "asha@example.com", "password": "wrongpass1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGuideAdminGating(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, userToken := env.registerUser(t, "Ravi", "ravi@example.com")
	_, adminToken := env.registerAdmin(t, "admin@example.com")

	guideBody := map[string]any{"title": "Algebra Basics", "price": 199}

	resp := env.request(t, http.MethodPost, "/api/guides", userToken, guideBody)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin create status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/guides", adminToken, guideBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin create status %d, want 201", resp.StatusCode)
	}
	var guide domain.Guide
	decodeJSON(t, resp, &guide)
	if guide.Status != domain.GuideDraft {
		t.Fatalf("new guide should start draft, got %s", guide.Status)
	}

	// catalog is public
	resp = env.request(t, http.MethodGet, "/api/guides", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", resp.StatusCode)
	}
	var list struct {
		Items []domain.Guide `json:"items"`
		Count int            `json:"count"`
	}
	decodeJSON(t, resp, &list)
	if list.Count != 1 || len(list.Items) != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestPurchaseFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t, Config{})
	user, token := env.registerUser(t, "Asha", "asha@example.com")
	_, adminToken := env.registerAdmin(t, "admin@example.com")

	resp := env.request(t, http.MethodPost, "/api/guides", adminToken, map[string]any{
		"title": "Calculus Crash Course", "price": 299,
	})
	var guide domain.Guide
	decodeJSON(t, resp, &guide)

	// attach a stored object so the PDF can stream
	if err := env.objects.Put(context.Background(), "guides/"+guide.ID+"/doc.pdf", strings.NewReader("%PDF-1.4 fake"), 13, "application/pdf"); err != nil {
		t.Fatalf("put object: %v", err)
	}
	stored, _, _ := env.store.GetGuide(guide.ID)
	stored.PdfURL = "guides/" + guide.ID + "/doc.pdf"
	if err := env.store.SaveGuide(stored); err != nil {
		t.Fatalf("save guide: %v", err)
	}

	// before purchase the gate holds
	resp = env.request(t, http.MethodGet, "/api/pdf/view/"+guide.ID, token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unpurchased view status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	// unknown guides are 404, not 403
	resp = env.request(t, http.MethodGet, "/api/pdf/view/doesnotexist", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing guide view status %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	// create order
	resp = env.request(t, http.MethodPost, "/api/payment/create-order/"+guide.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create order status %d", resp.StatusCode)
	}
	var order struct {
		Success  bool   `json:"success"`
		OrderID  string `json:"orderId"`
		Amount   int64  `json:"amount"`
		KeyID    string `json:"keyId"`
		Currency string `json:"currency"`
		GuideID  string `json:"guideId"`
	}
	decodeJSON(t, resp, &order)
	if !order.Success || order.Amount != 29900 || order.Currency != "INR" {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.KeyID != "rzp_test_key" || order.GuideID != guide.ID {
		t.Fatalf("unexpected order %+v", order)
	}

	// verify with a bad signature fails and does not grant access
	resp = env.request(t, http.MethodPost, "/api/payment/verify", token, map[string]string{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_e2e",
		"razorpay_signature":  "deadbeef",
		"guideId":             guide.ID,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad signature status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	// a failed order cannot be verified again; create a fresh one
	resp = env.request(t, http.MethodPost, "/api/payment/create-order/"+guide.ID, token, nil)
	decodeJSON(t, resp, &order)

	sig := razorpay.SignPayment(testKeySecret, order.OrderID, "pay_e2e")
	resp = env.request(t, http.MethodPost, "/api/payment/verify", token, map[string]string{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_e2e",
		"razorpay_signature":  sig,
		"guideId":             guide.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// record the purchase
	resp = env.request(t, http.MethodPost, "/api/purchase/buy", token, map[string]string{
		"guideId": guide.ID, "paymentId": "pay_e2e",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("buy status %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	// buying again is idempotent
	resp = env.request(t, http.MethodPost, "/api/purchase/buy", token, map[string]string{
		"guideId": guide.ID, "paymentId": "pay_e2e",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat buy status %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/purchase/mine", token, nil)
	var mine struct {
		Items []domain.Purchase `json:"items"`
		Count int               `json:"count"`
	}
	decodeJSON(t, resp, &mine)
	if mine.Count != 1 || mine.Items[0].UserID != user.ID {
		t.Fatalf("unexpected purchases %+v", mine)
	}

	// the gate now opens
	resp = env.request(t, http.MethodGet, "/api/pdf/view/"+guide.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchased view status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("unexpected body %q", data)
	}

	// admins bypass the purchase gate
	resp = env.request(t, http.MethodGet, "/api/pdf/view/"+guide.ID, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin view status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{AuthRateLimitPerMinute: 2})
	body := map[string]string{"email": "nobody@example.com", "password": "guide2024"}

	for i := 0; i < 2; i++ {
		resp := env.request(t, http.MethodPost, "/api/auth/login", "", body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d status %d, want 401", i+1, resp.StatusCode)
		}
		resp.Body.Close()
	}
	resp := env.request(t, http.MethodPost, "/api/auth/login", "", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("limited attempt status %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	resp.Body.Close()
}

func TestAdminUserEndpoints(t *testing.T) {
	env := newTestEnv(t, Config{})
	user, userToken := env.registerUser(t, "Ravi", "ravi@example.com")
	_, adminToken := env.registerAdmin(t, "admin@example.com")

	resp := env.request(t, http.MethodGet, "/api/admin/users", userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin list status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list status %d", resp.StatusCode)
	}
	var list struct {
		Items []domain.User `json:"items"`
		Count int           `json:"count"`
	}
	decodeJSON(t, resp, &list)
	if list.Count != 2 {
		t.Fatalf("expected 2 users, got %d", list.Count)
	}

	resp = env.request(t, http.MethodPost, "/api/admin/users/promote", adminToken, map[string]string{
		"email": "ravi@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("promote status %d", resp.StatusCode)
	}
	var promoted domain.User
	decodeJSON(t, resp, &promoted)
	if promoted.ID != user.ID || promoted.Role != domain.RoleAdmin {
		t.Fatalf("unexpected promoted user %+v", promoted)
	}
}

func TestLessonContentEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, userToken := env.registerUser(t, "Ravi", "ravi@example.com")
	_, adminToken := env.registerAdmin(t, "admin@example.com")

	resp := env.request(t, http.MethodPost, "/api/courses", adminToken, map[string]any{
		"title": "Physics 101", "isPaid": true, "price": 499,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create course status %d", resp.StatusCode)
	}
	var course domain.Course
	decodeJSON(t, resp, &course)

	resp = env.request(t, http.MethodPost, "/api/lessons", adminToken, map[string]any{
		"courseId": course.ID, "title": "Kinematics", "isPremium": true, "videoKey": "lessons/kinematics.mp4",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create lesson status %d", resp.StatusCode)
	}
	var lesson domain.Lesson
	decodeJSON(t, resp, &lesson)

	if err := env.objects.Put(context.Background(), "lessons/kinematics.mp4", strings.NewReader("vid"), 3, "video/mp4"); err != nil {
		t.Fatalf("put object: %v", err)
	}

	// non-premium user is blocked from premium lesson media
	path := fmt.Sprintf("/api/lessons/%s/content", lesson.ID)
	resp = env.request(t, http.MethodGet, path, userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("free user content status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	// admin gets presigned media URLs
	resp = env.request(t, http.MethodGet, path, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin content status %d", resp.StatusCode)
	}
	var content struct {
		LessonID string `json:"lessonId"`
		VideoURL string `json:"videoUrl"`
	}
	decodeJSON(t, resp, &content)
	if content.LessonID != lesson.ID || content.VideoURL == "" {
		t.Fatalf("unexpected content %+v", content)
	}

	// course detail includes lessons and is public
	resp = env.request(t, http.MethodGet, "/api/courses/"+course.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("course detail status %d", resp.StatusCode)
	}
	var detail domain.Course
	decodeJSON(t, resp, &detail)
	if len(detail.Lessons) != 1 || detail.Lessons[0].ID != lesson.ID {
		t.Fatalf("unexpected course detail %+v", detail)
	}
}
