package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"inventory-tracker/internal/app"
	"inventory-tracker/internal/core"
)

type fakeApp struct {
	app.ApplicationService

	query  app.AlertQuery
	ackReq app.AcknowledgeRequest
	lookup app.LookupRequest
}

func (f *fakeApp) ListAlerts(_ context.Context, q app.AlertQuery) (*app.AlertsResult, error) {
	f.query = q
	rid := 4
	return &app.AlertsResult{
		Alerts: []core.Alert{{ID: "expired_4", Type: core.AlertExpired, Severity: core.SeverityCritical,
			RecordID: &rid, ItemName: "Insulin", Location: "Clinic A", Message: "Item expired 2 days ago"}},
		Counts: core.AlertCounts{Total: 1, Critical: 1},
	}, nil
}

func (f *fakeApp) AcknowledgeAlerts(_ context.Context, req app.AcknowledgeRequest) (*core.AckResult, error) {
	f.ackReq = req
	return &core.AckResult{
		Acknowledged: []string{"expired_4"},
		Skipped:      []string{"stock_Insulin_Clinic_A"},
		Failed:       []core.AckFailed{{ID: "junk", Reason: "malformed alert id"}},
	}, core.ErrPartialAcknowledgment
}

func (f *fakeApp) LookupBarcode(_ context.Context, req app.LookupRequest) (*app.LookupResult, error) {
	f.lookup = req
	return &app.LookupResult{Found: false}, nil
}

func TestRun_Alerts(t *testing.T) {
	f := &fakeApp{}
	var out bytes.Buffer
	if err := Run(context.Background(), f, "ops", []string{"alerts", "-severity", "Critical,Warning"}, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.query.Severities) != 2 || f.query.Severities[1] != core.SeverityWarning {
		t.Errorf("query = %+v", f.query)
	}
	for _, want := range []string{"Active alerts: 1", "expired_4", "Insulin", "Item expired 2 days ago"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_AckReportsEveryOutcome(t *testing.T) {
	f := &fakeApp{}
	var out bytes.Buffer
	err := Run(context.Background(), f, "ops", []string{"ack", "expired_4", "stock_Insulin_Clinic_A", "junk"}, &out)
	if !errors.Is(err, core.ErrPartialAcknowledgment) {
		t.Fatalf("expected partial acknowledgment error, got %v", err)
	}
	if f.ackReq.User != "ops" || len(f.ackReq.AlertIDs) != 3 {
		t.Errorf("request = %+v", f.ackReq)
	}
	for _, want := range []string{"acknowledged  expired_4", "skipped       stock_Insulin_Clinic_A", "failed        junk: malformed alert id"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_Lookup(t *testing.T) {
	f := &fakeApp{}
	var out bytes.Buffer
	if err := Run(context.Background(), f, "ops", []string{"lookup", "-type", "Patient ID", "PT-42"}, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.lookup.CodeType != core.CodePatientID || f.lookup.Code != "PT-42" || f.lookup.ScannedBy != "ops" {
		t.Errorf("lookup = %+v", f.lookup)
	}
	if !strings.Contains(out.String(), `No record found for "PT-42"`) {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_Usage(t *testing.T) {
	tests := [][]string{
		nil,
		{"frobnicate"},
		{"ack"},
		{"lookup"},
		{"alerts", "-bogus"},
	}
	for _, args := range tests {
		if err := Run(context.Background(), &fakeApp{}, "ops", args, &bytes.Buffer{}); !errors.Is(err, ErrUsage) {
			t.Errorf("Run(%v) = %v, want ErrUsage", args, err)
		}
	}
}
