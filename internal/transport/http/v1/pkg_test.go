package v1

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/tradiehelper/internal/auth"
	"github.com/xiaot623/tradiehelper/internal/config"
	"github.com/xiaot623/tradiehelper/internal/policy"
	"github.com/xiaot623/tradiehelper/internal/presence"
	"github.com/xiaot623/tradiehelper/internal/realtime"
	"github.com/xiaot623/tradiehelper/internal/repository"
	"github.com/xiaot623/tradiehelper/internal/service"
	"github.com/xiaot623/tradiehelper/tests/helpers"
)

type testEnv struct {
	handler  *Handler
	store    *repository.SQLStore
	presence *presence.Registry
}

func newTestHandler(t *testing.T, mutate func(*service.Deps)) *testEnv {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	tr := realtime.NewTransport(realtime.NewMemoryBus(), nil)
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	reg := presence.NewRegistry(tr, realtime.ChannelUserPresence, db, 0, nil)

	d := service.Deps{
		Store:        db,
		Transport:    tr,
		Config:       &config.Config{},
		Presence:     reg,
		PolicyEngine: policyEngine,
	}
	if mutate != nil {
		mutate(&d)
	}
	return &testEnv{
		handler:  NewHandler(service.New(d), auth.NewVerifier("")),
		store:    db,
		presence: reg,
	}
}

// newContext builds an authenticated echo context for userID.
func newContext(method, target, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req = httptest.NewRequest(method, target, nil)
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		auth.SetUserID(c, userID)
	}
	return c, rec
}

func withConversation(c echo.Context, jobID, otherID string) {
	c.SetParamNames("job_id", "other_id")
	c.SetParamValues(jobID, otherID)
}
