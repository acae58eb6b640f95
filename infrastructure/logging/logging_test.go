package logging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// testLogger creates a logger that writes to a buffer for testing
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := bolt.NewJSONHandler(buf)
	logger := bolt.New(handler).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		config     Config
		wantLevel  string
		wantFormat string
		wantOutput io.Writer
	}{
		{"default", DefaultConfig(), "info", "console", os.Stderr},
		{"discard", DiscardConfig(), "error", "json", io.Discard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.config.Level != tt.wantLevel {
				t.Errorf("Level = %s, want %s", tt.config.Level, tt.wantLevel)
			}
			if tt.config.Format != tt.wantFormat {
				t.Errorf("Format = %s, want %s", tt.config.Format, tt.wantFormat)
			}
			if tt.config.Output != tt.wantOutput {
				t.Errorf("Output = %v, want %v", tt.config.Output, tt.wantOutput)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"warn", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
		{"", bolt.INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNew_WritesJSON(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := New(Config{Level: "debug", Format: "json", Output: buf})
	NewEvent(logger.Info()).Add(DecisionID("d-1")).Msg("locked")

	if !bytes.Contains(buf.Bytes(), []byte(`"decision_id":"d-1"`)) {
		t.Errorf("expected decision_id field in output: %s", buf.String())
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"DecisionID", DecisionID("d-1"), `"decision_id":"d-1"`},
		{"ApprovalID", ApprovalID("a-1"), `"approval_id":"a-1"`},
		{"SessionID", SessionID("s-1"), `"session_id":"s-1"`},
		{"ActorID", ActorID("u-1"), `"actor_id":"u-1"`},
		{"Category", Category("POLICY_LOCK"), `"category":"POLICY_LOCK"`},
		{"Status", Status("LOCKED"), `"status":"LOCKED"`},
		{"FromStatus", FromStatus("DRAFT"), `"from_status":"DRAFT"`},
		{"ToStatus", ToStatus("LOCKED"), `"to_status":"LOCKED"`},
		{"Resource type", Resource("Policy", "p-1"), `"resource_type":"Policy"`},
		{"Resource id", Resource("Policy", "p-1"), `"resource_id":"p-1"`},
		{"Action", Action("DECISION_LOCKED"), `"action":"DECISION_LOCKED"`},
		{"Duration", Duration(100 * time.Millisecond), `"duration_ms":100`},
		{"ErrorField", ErrorField(errors.New("test error")), `"error":"test error"`},
		{"Approved", Approved(true), `"approved":true`},
		{"Count", Count("notified", 3), `"notified":3`},
		{"Component", Component("ledger"), `"component":"ledger"`},
		{"Operation", Operation("supersede"), `"operation":"supersede"`},
		{"Str", Str("custom", "value"), `"custom":"value"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")

			if !bytes.Contains(buf.Bytes(), []byte(tt.want)) {
				t.Errorf("expected %s in output: %s", tt.want, buf.String())
			}
		})
	}
}

func TestErrorField_Nil(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	ErrorField(nil)(logger.Info()).Msg("test")

	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Errorf("unexpected error field in output: %s", buf.String())
	}
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	t.Run("Add chains fields", func(t *testing.T) {
		t.Parallel()
		logger, buf := testLogger()
		NewEvent(logger.Info()).Add(ApprovalID("a-1")).Add(Status("APPROVED")).Msg("test")

		if !bytes.Contains(buf.Bytes(), []byte(`"approval_id":"a-1"`)) {
			t.Errorf("expected approval_id field in output: %s", buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"status":"APPROVED"`)) {
			t.Errorf("expected status field in output: %s", buf.String())
		}
	})
}

func TestGetAndOrDefault(t *testing.T) {
	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil")
	}
	if OrDefault(nil) != logger {
		t.Error("OrDefault(nil) should return the default logger")
	}
	custom, _ := testLogger()
	if OrDefault(custom) != custom {
		t.Error("OrDefault should return the given logger")
	}
}
