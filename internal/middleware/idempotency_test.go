package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cambio-fx/cambio_fx/internal/logging"
)

const testUserHeader = "X-Test-User"

func setupTestApp(t *testing.T) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	// Stand-in for the JWT guard: the idempotency layer reads the user id
	// from locals.
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get(testUserHeader))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	calls := 0
	app.Post("/offers", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"calls": calls})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, cleanup
}

func postOffers(t *testing.T, app *fiber.App, user, key string) ([]byte, int) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/offers", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return body, resp.StatusCode
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	_, status := postOffers(t, app, "user-a", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	payload, status := postOffers(t, app, "user-a", "submit-1")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	// Replay with the same user and key must return the stored response
	// without rerunning the handler.
	cached, status := postOffers(t, app, "user-a", "submit-1")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if string(cached) != string(payload) {
		t.Fatalf("expected cached payload %s got %s", string(payload), string(cached))
	}

	var decoded map[string]any
	if err := json.Unmarshal(cached, &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
	if calls, ok := decoded["calls"].(float64); !ok || calls != 1 {
		t.Fatalf("expected handler to run once, payload %s", string(cached))
	}
}

func TestIdempotencyKeysScopedPerUser(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	first, _ := postOffers(t, app, "user-a", "shared-key")
	second, _ := postOffers(t, app, "user-b", "shared-key")

	// The same key from a different user must run the handler again, never
	// replay the first user's response.
	var a, b map[string]any
	if err := json.Unmarshal(first, &a); err != nil {
		t.Fatalf("first payload: %v", err)
	}
	if err := json.Unmarshal(second, &b); err != nil {
		t.Fatalf("second payload: %v", err)
	}
	if a["calls"] != float64(1) || b["calls"] != float64(2) {
		t.Fatalf("expected independent executions, got %v and %v", a["calls"], b["calls"])
	}
}

func TestIdempotencySkipsSafeMethods(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	app.Get("/offers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest(fiber.MethodGet, "/offers", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
}
