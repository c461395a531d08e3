package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/sse"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/testutil"
	"go.uber.org/zap"
)

type apiEnv struct {
	*testutil.Env
	Shop   *testutil.Shop
	Hub    *sse.Hub
	Router *gin.Engine
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	env := testutil.NewEnv(t)
	shop := testutil.SeedShop(t, env.DB)
	hub := sse.NewHub(zap.NewNop())

	router := testutil.SetupRouter()
	NewHandlers(env.Services, hub, zap.NewNop()).Register(testutil.AuthGroup(router, "/api/v1"))

	return &apiEnv{Env: env, Shop: shop, Hub: hub, Router: router}
}

func (e *apiEnv) do(method, path string, body interface{}, as *entity.User) *httptest.ResponseRecorder {
	return testutil.DoRequest(e.Router, method, path, body, testutil.TokenFor(as))
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, kind apperr.Kind, code int) map[string]interface{} {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := testutil.ParseResponse(w)
	assert.Equal(t, string(kind), resp["kind"])
	assert.EqualValues(t, code, resp["code"])
	return resp
}

func createJobViaAPI(t *testing.T, e *apiEnv) map[string]interface{} {
	t.Helper()
	w := e.do("POST", "/api/v1/jobs", map[string]interface{}{
		"customer_id":         e.Shop.Customer.ID,
		"miner_model_id":      e.Shop.Model.ID,
		"warranty_profile_id": e.Shop.Warranty.ID,
		"problem_description": "Unit reboots every few minutes, fans at 100%",
		"serial_number":       "YNAHD4BBCJABA0123",
	}, e.Shop.Receptionist)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return testutil.DataOf(w)
}

func TestCreateJobAPI(t *testing.T) {
	e := setupAPI(t)

	data := createJobViaAPI(t, e)
	assert.Regexp(t, `^JOB-\d{8}-\d{4}$`, data["job_number"])
	assert.Equal(t, "RECEIVED", data["status"])
	assert.Nil(t, data["completion_date"])
	assert.EqualValues(t, 1, data["version"])

	customer, _ := data["customer"].(map[string]interface{})
	assert.Equal(t, e.Shop.Customer.Name, customer["name"])
}

func TestCreateJobAPIValidation(t *testing.T) {
	e := setupAPI(t)

	w := e.do("POST", "/api/v1/jobs", map[string]interface{}{
		"customer_id":         e.Shop.Customer.ID,
		"miner_model_id":      e.Shop.Model.ID,
		"problem_description": "too short",
		"priority":            7,
	}, e.Shop.Receptionist)
	resp := assertError(t, w, http.StatusBadRequest, apperr.KindValidation, apperr.CodeValidation)

	fields, _ := resp["fields"].([]interface{})
	var names []string
	for _, f := range fields {
		names = append(names, f.(map[string]interface{})["field"].(string))
	}
	assert.ElementsMatch(t, []string{"problem_description", "priority"}, names)

	w = e.do("POST", "/api/v1/jobs", `{"customer_id": `, e.Shop.Receptionist)
	assertError(t, w, http.StatusBadRequest, apperr.KindValidation, apperr.CodeValidation)

	w = e.do("POST", "/api/v1/jobs", `{"priority": "high"}`, e.Shop.Receptionist)
	resp = assertError(t, w, http.StatusBadRequest, apperr.KindValidation, apperr.CodeValidation)
	assert.Contains(t, resp["message"], "priority")
}

func TestAPIRequiresToken(t *testing.T) {
	e := setupAPI(t)

	w := testutil.DoRequest(e.Router, "GET", "/api/v1/jobs", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangeStatusAPI(t *testing.T) {
	e := setupAPI(t)
	job := createJobViaAPI(t, e)
	path := "/api/v1/jobs/" + job["id"].(string)

	e.Clock.Advance(time.Minute)
	w := e.do("PATCH", path+"/status", map[string]interface{}{"new_status": "COMPLETED", "version": 1}, e.Shop.Manager)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := testutil.DataOf(w)
	assert.Equal(t, "COMPLETED", data["status"])
	assert.NotNil(t, data["completion_date"])
	assert.EqualValues(t, 2, data["version"])

	w = e.do("PATCH", path+"/status", map[string]interface{}{"new_status": "IN_REPAIR"}, e.Shop.Manager)
	assertError(t, w, http.StatusConflict, apperr.KindInvalidState, apperr.CodeInvalidState)

	w = e.do("PATCH", path+"/status", map[string]interface{}{"new_status": "DONE"}, e.Shop.Manager)
	assertError(t, w, http.StatusBadRequest, apperr.KindValidation, apperr.CodeValidation)

	w = e.do("GET", path+"/history", nil, e.Shop.Receptionist)
	require.Equal(t, http.StatusOK, w.Code)
	items := testutil.DataOf(w)["items"].([]interface{})
	require.Len(t, items, 2)
	last := items[1].(map[string]interface{})
	assert.Equal(t, "RECEIVED", last["from_status"])
	assert.Equal(t, "COMPLETED", last["to_status"])
}

func TestStaleVersionAPI(t *testing.T) {
	e := setupAPI(t)
	job := createJobViaAPI(t, e)
	path := "/api/v1/jobs/" + job["id"].(string)

	w := e.do("PATCH", path+"/status", map[string]interface{}{"new_status": "DIAGNOSED", "version": 1}, e.Shop.Manager)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do("PATCH", path+"/status", map[string]interface{}{"new_status": "CANCELLED", "version": 1}, e.Shop.Manager)
	assertError(t, w, http.StatusConflict, apperr.KindConflict, apperr.CodeConflict)
}

func TestAuthorizationAPI(t *testing.T) {
	e := setupAPI(t)
	job := testutil.SeedJob(t, e.DB, e.Shop.Customer, e.Shop.Model, entity.JobStatusInRepair, e.Shop.Technician)
	path := "/api/v1/jobs/" + job.ID

	w := e.do("POST", path+"/records", map[string]interface{}{"description": "Reflowed ASIC chain 2"}, e.Shop.Technician2)
	assertError(t, w, http.StatusForbidden, apperr.KindAuthorization, apperr.CodeAuthorization)

	w = e.do("POST", path+"/records", map[string]interface{}{"description": "Reflowed ASIC chain 2"}, e.Shop.Technician)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do("GET", "/api/v1/jobs/0b5d8b2e-6a7c-4f0e-9d36-2f4c0b1e7a11", nil, e.Shop.Manager)
	assertError(t, w, http.StatusNotFound, apperr.KindNotFound, apperr.CodeNotFound)
}

func TestAddPartAPI(t *testing.T) {
	e := setupAPI(t)
	job := testutil.SeedJob(t, e.DB, e.Shop.Customer, e.Shop.Model, entity.JobStatusInRepair, e.Shop.Technician)
	path := "/api/v1/jobs/" + job.ID + "/parts"

	w := e.do("POST", path, map[string]interface{}{"part_id": e.Shop.Part.ID, "quantity": 50}, e.Shop.Technician)
	resp := assertError(t, w, http.StatusConflict, apperr.KindInsufficientStock, apperr.CodeInsufficientStock)
	details := resp["details"].(map[string]interface{})
	assert.EqualValues(t, 10, details["available"])

	w = e.do("POST", path, map[string]interface{}{"part_id": e.Shop.Part.ID, "quantity": 2}, e.Shop.Technician)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := testutil.DataOf(w)
	assert.EqualValues(t, 9000, data["line_total"])

	w = e.do("GET", path, nil, e.Shop.Technician)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 9000, testutil.DataOf(w)["parts_total"])

	w = e.do("GET", "/api/v1/parts/"+e.Shop.Part.ID, nil, e.Shop.Manager)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 8, testutil.DataOf(w)["stock_qty"])
}

func TestUpdateJobClearsFieldAPI(t *testing.T) {
	e := setupAPI(t)
	job := createJobViaAPI(t, e)
	path := "/api/v1/jobs/" + job["id"].(string)

	w := e.do("PATCH", path, `{"warranty_profile_id": null, "customer_notes": "call first"}`, e.Shop.Manager)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := testutil.DataOf(w)
	assert.Nil(t, data["warranty_profile_id"])
	assert.Equal(t, "call first", data["customer_notes"])

	w = e.do("PATCH", path, `{"estimated_done_date": "next week"}`, e.Shop.Manager)
	assertError(t, w, http.StatusBadRequest, apperr.KindValidation, apperr.CodeValidation)
}

func TestListJobsAPI(t *testing.T) {
	e := setupAPI(t)
	for i := 0; i < 3; i++ {
		testutil.SeedJob(t, e.DB, e.Shop.Customer, e.Shop.Model, entity.JobStatusDiagnosed, nil)
	}
	testutil.SeedJob(t, e.DB, e.Shop.Customer, e.Shop.Model, entity.JobStatusCancelled, nil)

	w := e.do("GET", "/api/v1/jobs?status=DIAGNOSED&page=1&page_size=2", nil, e.Shop.Receptionist)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := testutil.DataOf(w)
	assert.Len(t, data["items"], 2)
	pagination := data["pagination"].(map[string]interface{})
	assert.EqualValues(t, 3, pagination["total"])
	assert.EqualValues(t, 2, pagination["total_pages"])

	w = e.do("GET", "/api/v1/jobs?priority=high", nil, e.Shop.Receptionist)
	assertError(t, w, http.StatusBadRequest, apperr.KindValidation, apperr.CodeValidation)
}

func TestDeleteCustomerAPI(t *testing.T) {
	e := setupAPI(t)
	testutil.SeedJob(t, e.DB, e.Shop.Customer, e.Shop.Model, entity.JobStatusReceived, nil)

	w := e.do("DELETE", "/api/v1/customers/"+e.Shop.Customer.ID, nil, e.Shop.Receptionist)
	assertError(t, w, http.StatusConflict, apperr.KindInvalidState, apperr.CodeInvalidState)

	w = e.do("POST", "/api/v1/customers", map[string]interface{}{"name": "Walk-in"}, e.Shop.Receptionist)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := testutil.DataOf(w)["id"].(string)

	w = e.do("DELETE", "/api/v1/customers/"+id, nil, e.Shop.Receptionist)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestDashboardAndNotificationsAPI(t *testing.T) {
	e := setupAPI(t)
	job := testutil.SeedJob(t, e.DB, e.Shop.Customer, e.Shop.Model, entity.JobStatusTesting, e.Shop.Technician)

	w := e.do("GET", "/api/v1/dashboard", nil, e.Shop.Technician)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	counts := testutil.DataOf(w)["status_counts"].(map[string]interface{})
	assert.EqualValues(t, 1, counts["TESTING"])

	w = e.do("PATCH", "/api/v1/jobs/"+job.ID+"/status", map[string]interface{}{"new_status": "READY_FOR_PICKUP"}, e.Shop.Technician)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the recording notifier does not fan out, so deliver the captured event to the in-app sink
	for _, ev := range e.Notifier.Events() {
		require.NoError(t, e.Services.Notification.Send(context.Background(), ev))
	}

	w = e.do("GET", "/api/v1/notifications?unread=true", nil, e.Shop.Technician)
	require.Equal(t, http.StatusOK, w.Code)
	items := testutil.DataOf(w)["items"].([]interface{})
	require.Len(t, items, 1)
	id := items[0].(map[string]interface{})["id"].(string)

	w = e.do("PATCH", "/api/v1/notifications/"+id+"/read", nil, e.Shop.Technician)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do("PATCH", "/api/v1/notifications/"+id+"/read", nil, e.Shop.Technician2)
	assertError(t, w, http.StatusNotFound, apperr.KindNotFound, apperr.CodeNotFound)
}

func TestUsersAPI(t *testing.T) {
	e := setupAPI(t)

	w := e.do("GET", "/api/v1/users/me", nil, e.Shop.Technician)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TECHNICIAN", testutil.DataOf(w)["role"])

	w = e.do("POST", "/api/v1/users", map[string]interface{}{"username": "tech9", "name": "Tech Nine", "role": "TECHNICIAN"}, e.Shop.Manager)
	assertError(t, w, http.StatusForbidden, apperr.KindAuthorization, apperr.CodeAuthorization)

	w = e.do("POST", "/api/v1/users", map[string]interface{}{"username": "tech9", "name": "Tech Nine", "role": "TECHNICIAN"}, e.Shop.Admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do("GET", "/api/v1/users?role=TECHNICIAN&active_only=true", nil, e.Shop.Manager)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.DataOf(w)["items"], 3)
}

func TestFailHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/jobs", nil)

	Fail(c, zap.NewNop(), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	resp := testutil.ParseResponse(w)
	assert.Equal(t, string(apperr.KindInternal), resp["kind"])
}

func TestSSEStream(t *testing.T) {
	e := setupAPI(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/v1/events?token="+testutil.TokenFor(e.Shop.Technician), nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Router.ServeHTTP(w, req)
	}()

	require.Eventually(t, func() bool { return e.Hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	e.Hub.PublishJSON(e.Shop.Technician.ID, "notification", map[string]string{"title": "Job assigned"})
	e.Hub.PublishJSON(e.Shop.Technician2.ID, "notification", map[string]string{"title": "not for you"})

	// let the stream loop drain the event before disconnecting
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event:connected"))
	assert.Contains(t, body, `event:notification`)
	assert.Contains(t, body, `"title":"Job assigned"`)
	assert.NotContains(t, body, "not for you")
	assert.Equal(t, 0, e.Hub.Count())
}
