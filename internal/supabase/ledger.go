package supabase

import (
	"context"
	"fmt"
	"net/url"

	"infraction-report-service/internal/domain/report"
)

const reportsTable = "reportes"

// ReportLedger persists reports through PostgREST.
type ReportLedger struct {
	client *Client
}

func NewReportLedger(client *Client) *ReportLedger {
	return &ReportLedger{client: client}
}

// Insert writes one report. fecha_reporte is filled by the table default.
func (l *ReportLedger) Insert(ctx context.Context, r report.InfractionReport) error {
	headers := map[string]string{"Prefer": "return=minimal"}
	if err := l.client.postJSON(ctx, "/rest/v1/"+reportsTable, r, headers); err != nil {
		return fmt.Errorf("supabase insert report: %w", err)
	}
	return nil
}

// ListAll returns every report, newest first, with the owner's name embedded.
// A nil error with an empty slice means there are no reports.
func (l *ReportLedger) ListAll(ctx context.Context) ([]report.ReportWithOwner, error) {
	q := url.Values{}
	q.Set("select", "*,propietario_id(nombre_completo)")
	q.Set("order", "fecha_reporte.desc")

	var reports []report.ReportWithOwner
	if err := l.client.getJSON(ctx, "/rest/v1/"+reportsTable, q, &reports); err != nil {
		return nil, fmt.Errorf("supabase list reports: %w", err)
	}
	if reports == nil {
		reports = []report.ReportWithOwner{}
	}
	return reports, nil
}
