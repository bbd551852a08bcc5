package service

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/zappabad/optionboard/internal/diag"
)

func TestDiagServiceReport(t *testing.T) {
	var buf bytes.Buffer
	svc := NewDiagService(DefaultConfig(), zerolog.New(&buf))
	defer svc.Close()

	svc.Report(diag.Diagnostic{
		Source:    diag.SourceGateway,
		Severity:  diag.SeverityError,
		RequestID: 42,
		Command:   "resolve_contract",
		Code:      200,
		Message:   "No security definition has been found",
	})

	select {
	case ev := <-svc.Events():
		if ev.Item.ID == 0 || ev.Item.Time == 0 {
			t.Errorf("expected id and time to be set, got %+v", ev.Item)
		}
		if ev.Item.RequestID != 42 {
			t.Errorf("expected req 42, got %d", ev.Item.RequestID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for external event")
	}

	latest := svc.Latest(5)
	if len(latest) != 1 || latest[0].Code != 200 {
		t.Fatalf("expected one diagnostic with code 200, got %+v", latest)
	}
	if !strings.Contains(buf.String(), `"req_id":42`) {
		t.Errorf("expected req_id in log output, got %s", buf.String())
	}
}

func TestDiagServiceReportAfterClose(t *testing.T) {
	svc := NewDiagService(DefaultConfig(), zerolog.Nop())
	svc.Close()
	svc.Report(diag.Diagnostic{Message: "late"})
	if svc.Total() != 0 {
		t.Errorf("expected nothing recorded after close, got %d", svc.Total())
	}
}
