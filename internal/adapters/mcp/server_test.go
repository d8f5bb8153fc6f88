package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

type parserFake struct {
	text string
	err  error
}

func (f *parserFake) ParseInvoice(context.Context, string) (domain.ExtractionResult, error) {
	return domain.ExtractionResult{Text: f.text, Provenance: domain.ProvenanceLocal}, f.err
}

type updaterFake struct {
	outcome domain.UpdateOutcome
}

func (f *updaterFake) Update(context.Context) (domain.UpdateOutcome, error) {
	return f.outcome, nil
}

type settingsFake struct {
	key, baseURL string
}

func (f *settingsFake) SaveAPIKey(_ context.Context, v string) error { f.key = v; return nil }
func (f *settingsFake) LoadAPIKey(context.Context) (string, error)   { return f.key, nil }
func (f *settingsFake) SaveAPIBaseURL(_ context.Context, v string) error {
	f.baseURL = v
	return nil
}
func (f *settingsFake) LoadAPIBaseURL(context.Context) (string, error) { return f.baseURL, nil }

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %#v", result)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestParseInvoiceTool(t *testing.T) {
	tools := NewTools(&parserFake{text: "hello"}, &updaterFake{}, &settingsFake{})

	result, err := tools.parseInvoice(context.Background(), callRequest("parse_invoice", map[string]any{"file_path": "/tmp/a.pdf"}))
	if err != nil {
		t.Fatalf("parseInvoice() error: %v", err)
	}
	if result.IsError || resultText(t, result) != "hello" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestParseInvoiceToolRequiresPath(t *testing.T) {
	tools := NewTools(&parserFake{}, &updaterFake{}, &settingsFake{})

	result, err := tools.parseInvoice(context.Background(), callRequest("parse_invoice", map[string]any{}))
	if err != nil {
		t.Fatalf("parseInvoice() error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing file_path")
	}
}

func TestParseInvoiceToolFlattensFailure(t *testing.T) {
	parser := &parserFake{err: domain.WrapError(domain.ErrExtractionFailed, "parse invoice",
		domain.WrapError(domain.ErrNetwork, "ocr", errors.New("dial tcp: refused")))}
	tools := NewTools(parser, &updaterFake{}, &settingsFake{})

	result, _ := tools.parseInvoice(context.Background(), callRequest("parse_invoice", map[string]any{"file_path": "/tmp/a.pdf"}))
	if !result.IsError || resultText(t, result) != "failed to extract text" {
		t.Fatalf("expected generic tool error, got %#v", result)
	}
}

func TestSettingsTools(t *testing.T) {
	settings := &settingsFake{}
	tools := NewTools(&parserFake{}, &updaterFake{}, settings)
	ctx := context.Background()

	save := tools.saveSetting(settings.SaveAPIBaseURL, "url")
	if result, _ := save(ctx, callRequest("save_api_base_url", map[string]any{"url": "https://x.test"})); result.IsError {
		t.Fatalf("unexpected save error: %#v", result)
	}
	load := tools.loadSetting(settings.LoadAPIBaseURL)
	result, _ := load(ctx, callRequest("load_api_base_url", nil))
	if got := resultText(t, result); got != "https://x.test" {
		t.Fatalf("expected stored url, got %q", got)
	}
}

func TestUpdateToolReturnsOutcomeJSON(t *testing.T) {
	tools := NewTools(&parserFake{}, &updaterFake{outcome: domain.UpdateOutcome{SessionID: "s1", State: domain.UpdateNone}}, &settingsFake{})

	result, err := tools.update(context.Background(), callRequest("update", nil))
	if err != nil {
		t.Fatalf("update() error: %v", err)
	}
	var outcome domain.UpdateOutcome
	if err := json.Unmarshal([]byte(resultText(t, result)), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.State != domain.UpdateNone || outcome.SessionID != "s1" {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
}

func TestServerRegistersAllTools(t *testing.T) {
	tools := NewTools(&parserFake{}, &updaterFake{}, &settingsFake{})
	s := tools.Server("invoice-agent", "test")

	response := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	for _, name := range []string{"parse_invoice", "update", "save_api_key", "load_api_key", "save_api_base_url", "load_api_base_url"} {
		if !strings.Contains(string(raw), `"name":"`+name+`"`) {
			t.Fatalf("tool %s not listed in %s", name, raw)
		}
	}
}
