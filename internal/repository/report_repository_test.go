package repository

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"infraction-report-service/internal/domain/report"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(postgres.Open("host=localhost user=test dbname=test sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return gdb
}

func TestToDBReport(t *testing.T) {
	owner := int64(3)
	got, err := toDBReport(report.InfractionReport{
		OwnerID:               &owner,
		DetectedPlate:         "PBC1234",
		Description:           "bloqueando rampa",
		PlateEvidenceURL:      "p",
		InfractionEvidenceURL: "i",
		OCRCandidates:         []string{"PBC-1234", "ECUADOR"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PropietarioID == nil || *got.PropietarioID != 3 || got.PlacaDetectada != "PBC1234" {
		t.Fatalf("unexpected row: %+v", got)
	}

	var candidates []string
	if err := json.Unmarshal(got.TextoOCR, &candidates); err != nil || len(candidates) != 2 {
		t.Fatalf("texto_ocr = %s, %v", got.TextoOCR, err)
	}

	got, err = toDBReport(report.InfractionReport{DetectedPlate: report.UndetectedPlate})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PropietarioID != nil || got.TextoOCR != nil {
		t.Fatalf("expected null owner and texto_ocr, got %+v", got)
	}
}

func TestToReportWithOwner(t *testing.T) {
	id := int64(9)
	name := "Ana Ruiz"
	when := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	withOwner := toReportWithOwner(reportRow{ID: 1, PropietarioID: &id, NombreCompleto: &name, FechaReporte: when})
	if withOwner.Owner == nil || withOwner.Owner.FullName != "Ana Ruiz" || !withOwner.ReportedAt.Equal(when) {
		t.Fatalf("unexpected: %+v", withOwner)
	}

	orphan := toReportWithOwner(reportRow{ID: 2})
	if orphan.Owner != nil {
		t.Fatalf("expected nil owner, got %+v", orphan.Owner)
	}

	raw, _ := json.Marshal(orphan)
	if !strings.Contains(string(raw), `"propietario_id":null`) {
		t.Fatalf("owner should serialize as null: %s", raw)
	}
}

func TestQueries(t *testing.T) {
	gdb := dryRunDB(t)

	lookup := gdb.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []ownerRow
		return tx.Table("reporte_datos_view").
			Select("propietario_id, email, nombre_completo").
			Where("placa = ?", "PBC1234").
			Scan(&rows)
	})
	if !strings.Contains(lookup, `FROM "reporte_datos_view"`) || !strings.Contains(lookup, "placa = 'PBC1234'") {
		t.Fatalf("unexpected lookup SQL: %s", lookup)
	}

	insert := gdb.ToSQL(func(tx *gorm.DB) *gorm.DB {
		r := Report{PlacaDetectada: "PBC1234"}
		return tx.Create(&r)
	})
	if !strings.Contains(insert, `INSERT INTO "reportes"`) || !strings.Contains(insert, `"placa_detectada"`) {
		t.Fatalf("unexpected insert SQL: %s", insert)
	}
}
