package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestHealthReportFillsBuildMetadata(t *testing.T) {
	started := fixedClock()().Add(-90 * time.Minute)
	service, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
			},
		}},
		Clock: fixedClock(),
		Build: BuildInfo{Version: "1.4.0", CommitSHA: "abc123", Environment: "staging", StartedAt: started},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := service.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport returned error: %v", err)
	}
	if report.Version != "1.4.0" || report.CommitSHA != "abc123" || report.Environment != "staging" {
		t.Fatalf("expected build metadata filled, got %+v", report)
	}
	if report.Uptime != 90*time.Minute {
		t.Fatalf("expected uptime 90m, got %s", report.Uptime)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok status, got %s", report.Status)
	}
}

func TestHealthReportDerivesWorstStatus(t *testing.T) {
	service, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusError},
			},
		}},
		Clock: fixedClock(),
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := service.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport returned error: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
}

func TestHealthReportPropagatesCollectorFailure(t *testing.T) {
	collectErr := errors.New("collector broken")
	service, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{err: collectErr},
		Clock:            fixedClock(),
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	if _, err := service.HealthReport(context.Background()); !errors.Is(err, collectErr) {
		t.Fatalf("expected collector error, got %v", err)
	}
}
