package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/middleware"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/notify"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/policy"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "repair-test-secret"

// Epoch is the fixed start time of every fake clock.
var Epoch = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

var dbSeq, codeSeq int64

// SetupTestDB opens an isolated in-memory SQLite database with all repair tables migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:repair_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// SetupRedis starts a miniredis server and returns a client bound to it.
func SetupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// RecordingNotifier captures events synchronously.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *RecordingNotifier) Notify(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *RecordingNotifier) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// OfType returns the recorded events of one type.
func (r *RecordingNotifier) OfType(typ string) []notify.Event {
	var out []notify.Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops all recorded events.
func (r *RecordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Env bundles a wired service layer over a test database.
type Env struct {
	DB       *gorm.DB
	Repos    *repository.Repositories
	Services *service.Services
	Notifier *RecordingNotifier
	Clock    *clockwork.FakeClock
}

// NewEnv wires services against a fresh database with a recording notifier and fake clock.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	db := SetupTestDB(t)
	repos := repository.NewRepositories(db)
	rec := &RecordingNotifier{}
	clock := clockwork.NewFakeClockAt(Epoch)
	svc := service.NewServices(service.Deps{
		DB:       db,
		Repos:    repos,
		Notifier: rec,
		Clock:    clock,
		Logger:   zap.NewNop(),
	})
	return &Env{DB: db, Repos: repos, Services: svc, Notifier: rec, Clock: clock}
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, role entity.Role) string {
	now := time.Now()
	claims := middleware.JWTClaims{
		UserID: userID,
		Name:   name,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "repair-test",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// TokenFor issues a token for a seeded user.
func TokenFor(u *entity.User) string {
	return GenerateTestToken(u.ID, u.Name, u.Role)
}

// ActorOf converts a seeded user into a policy actor.
func ActorOf(u *entity.User) policy.Actor {
	return policy.Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		jsonBytes, _ := json.Marshal(b)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response envelope
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// DataOf returns the "data" object of a response envelope.
func DataOf(w *httptest.ResponseRecorder) map[string]interface{} {
	data, _ := ParseResponse(w)["data"].(map[string]interface{})
	return data
}

// SeedUser creates an active user with the given role.
func SeedUser(t *testing.T, db *gorm.DB, role entity.Role, name string) *entity.User {
	t.Helper()
	id := repositoryID()
	user := &entity.User{
		ID:       id,
		Username: "user_" + id[:8],
		Name:     name,
		Email:    id[:8] + "@repair.test",
		Role:     role,
		Active:   true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

// Deactivate marks a seeded user inactive.
func Deactivate(t *testing.T, db *gorm.DB, u *entity.User) {
	t.Helper()
	if err := db.Model(u).Update("active", false).Error; err != nil {
		t.Fatalf("Failed to deactivate user: %v", err)
	}
	u.Active = false
}

// SeedCustomer creates a customer.
func SeedCustomer(t *testing.T, db *gorm.DB, name, email string) *entity.Customer {
	t.Helper()
	id := repositoryID()
	c := &entity.Customer{
		ID:           id,
		CustomerCode: fmt.Sprintf("CUS-%04d", atomic.AddInt64(&codeSeq, 1)),
		Name:         name,
		Phone:        "0800000000",
		Email:        email,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("Failed to seed customer: %v", err)
	}
	return c
}

// SeedMinerModel creates an active miner model.
func SeedMinerModel(t *testing.T, db *gorm.DB, brand, model string) *entity.MinerModel {
	t.Helper()
	m := &entity.MinerModel{ID: repositoryID(), Brand: brand, Model: model, Hashrate: "110TH/s", PowerWatts: 3250, Active: true}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("Failed to seed miner model: %v", err)
	}
	return m
}

// SeedWarrantyProfile creates an active warranty profile.
func SeedWarrantyProfile(t *testing.T, db *gorm.DB, name string, days int) *entity.WarrantyProfile {
	t.Helper()
	p := &entity.WarrantyProfile{ID: repositoryID(), Name: name, DurationDays: days, Active: true}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed warranty profile: %v", err)
	}
	return p
}

// SeedPart creates an active part with the given stock and threshold.
func SeedPart(t *testing.T, db *gorm.DB, partNumber string, stock, minStock int, price float64) *entity.Part {
	t.Helper()
	p := &entity.Part{
		ID:          repositoryID(),
		PartNumber:  partNumber,
		Name:        "Part " + partNumber,
		UnitPrice:   price,
		StockQty:    stock,
		MinStockQty: minStock,
		Active:      true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed part: %v", err)
	}
	return p
}

// SeedJob inserts a job directly in the given status, bypassing the service layer.
func SeedJob(t *testing.T, db *gorm.DB, customer *entity.Customer, model *entity.MinerModel, status entity.JobStatus, technician *entity.User) *entity.Job {
	t.Helper()
	id := repositoryID()
	job := &entity.Job{
		ID:                 id,
		JobNumber:          fmt.Sprintf("JOB-20000101-%04d", atomic.AddInt64(&codeSeq, 1)),
		CustomerID:         customer.ID,
		MinerModelID:       model.ID,
		Status:             status,
		ProblemDescription: "Hashboard 2 not detected after power surge",
		Version:            1,
		CreatedAt:          Epoch,
		UpdatedAt:          Epoch,
	}
	if technician != nil {
		job.TechnicianID = &technician.ID
	}
	if status.IsTerminal() {
		done := Epoch
		job.CompletionDate = &done
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to seed job: %v", err)
	}
	return job
}

// Shop is a small fixture: one user per role, a customer, a model, a warranty profile and a part.
type Shop struct {
	Admin        *entity.User
	Manager      *entity.User
	Technician   *entity.User
	Technician2  *entity.User
	Receptionist *entity.User
	Customer     *entity.Customer
	Model        *entity.MinerModel
	Warranty     *entity.WarrantyProfile
	Part         *entity.Part
}

// SeedShop creates the standard fixture.
func SeedShop(t *testing.T, db *gorm.DB) *Shop {
	t.Helper()
	return &Shop{
		Admin:        SeedUser(t, db, entity.RoleAdmin, "Admin"),
		Manager:      SeedUser(t, db, entity.RoleManager, "Manager"),
		Technician:   SeedUser(t, db, entity.RoleTechnician, "Tech One"),
		Technician2:  SeedUser(t, db, entity.RoleTechnician, "Tech Two"),
		Receptionist: SeedUser(t, db, entity.RoleReceptionist, "Front Desk"),
		Customer:     SeedCustomer(t, db, "Somchai Mining", "somchai@example.com"),
		Model:        SeedMinerModel(t, db, "Bitmain", "Antminer S19 Pro"),
		Warranty:     SeedWarrantyProfile(t, db, "90-day repair warranty", 90),
		Part:         SeedPart(t, db, "HB-S19-01", 10, 2, 4500),
	}
}

func repositoryID() string {
	return uuid.New().String()
}
