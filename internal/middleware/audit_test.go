package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAuditLogsRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(RequestID())
	app.Use(Audit(logger))
	app.Get("/offers", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/offers", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line not json: %v (%s)", err, buf.String())
	}
	if entry["method"] != "GET" || entry["path"] != "/offers" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if entry["status"] != float64(fiber.StatusOK) {
		t.Fatalf("expected status 200, got %v", entry["status"])
	}
	if entry["request_id"] != "req-42" {
		t.Fatalf("expected incoming request id in log, got %v", entry["request_id"])
	}
}

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/ping", func(c *fiber.Ctx) error {
		id, _ := c.Locals(requestIDKey).(string)
		if id == "" {
			t.Error("expected a generated request id in locals")
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected request id echoed on response")
	}
}
