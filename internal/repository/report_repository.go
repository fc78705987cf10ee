package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"infraction-report-service/internal/domain/report"
)

// ReportRepository serves both the owner directory and the report ledger
// from a Postgres database.
type ReportRepository struct {
	db            *gorm.DB
	lookupTimeout time.Duration
}

// NewReportRepository bounds owner lookups by lookupTimeout; zero disables it.
func NewReportRepository(db *gorm.DB, lookupTimeout time.Duration) *ReportRepository {
	return &ReportRepository{db: db, lookupTimeout: lookupTimeout}
}

type Report struct {
	ID                int64          `gorm:"primaryKey"`
	PropietarioID     *int64         `gorm:"column:propietario_id"`
	PlacaDetectada    string         `gorm:"column:placa_detectada;not null"`
	Descripcion       string         `gorm:"column:descripcion;not null"`
	URLFotoPlaca      string         `gorm:"column:url_foto_placa;not null"`
	URLFotoInfraccion string         `gorm:"column:url_foto_infraccion;not null"`
	TextoOCR          datatypes.JSON `gorm:"column:texto_ocr"`
	FechaReporte      time.Time      `gorm:"column:fecha_reporte;->"`
}

func (Report) TableName() string { return "reportes" }

type ownerRow struct {
	PropietarioID  int64  `gorm:"column:propietario_id"`
	Email          string `gorm:"column:email"`
	NombreCompleto string `gorm:"column:nombre_completo"`
}

type reportRow struct {
	ID                int64     `gorm:"column:id"`
	PropietarioID     *int64    `gorm:"column:propietario_id"`
	NombreCompleto    *string   `gorm:"column:nombre_completo"`
	PlacaDetectada    string    `gorm:"column:placa_detectada"`
	Descripcion       string    `gorm:"column:descripcion"`
	URLFotoPlaca      string    `gorm:"column:url_foto_placa"`
	URLFotoInfraccion string    `gorm:"column:url_foto_infraccion"`
	FechaReporte      time.Time `gorm:"column:fecha_reporte"`
}

func (r *ReportRepository) FindByPlate(ctx context.Context, plate string) ([]report.OwnerRecord, error) {
	if r.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.lookupTimeout)
		defer cancel()
	}

	var rows []ownerRow
	err := r.db.WithContext(ctx).
		Table("reporte_datos_view").
		Select("propietario_id, email, nombre_completo").
		Where("placa = ?", plate).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query owner view: %w", err)
	}

	owners := make([]report.OwnerRecord, 0, len(rows))
	for _, row := range rows {
		id := row.PropietarioID
		owners = append(owners, report.OwnerRecord{
			OwnerID:  &id,
			Email:    row.Email,
			FullName: row.NombreCompleto,
		})
	}
	return owners, nil
}

// Insert stores the report; fecha_reporte comes from the column default.
func (r *ReportRepository) Insert(ctx context.Context, rep report.InfractionReport) error {
	dbReport, err := toDBReport(rep)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&dbReport).Error; err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) ListAll(ctx context.Context) ([]report.ReportWithOwner, error) {
	var rows []reportRow
	err := r.db.WithContext(ctx).
		Table("reportes").
		Select(`reportes.id, reportes.propietario_id, propietarios.nombre_completo,
			reportes.placa_detectada, reportes.descripcion, reportes.url_foto_placa,
			reportes.url_foto_infraccion, reportes.fecha_reporte`).
		Joins("LEFT JOIN propietarios ON propietarios.id = reportes.propietario_id").
		Order("reportes.fecha_reporte DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	result := make([]report.ReportWithOwner, 0, len(rows))
	for _, row := range rows {
		result = append(result, toReportWithOwner(row))
	}
	return result, nil
}

func toDBReport(rep report.InfractionReport) (Report, error) {
	dbReport := Report{
		PropietarioID:     rep.OwnerID,
		PlacaDetectada:    rep.DetectedPlate,
		Descripcion:       rep.Description,
		URLFotoPlaca:      rep.PlateEvidenceURL,
		URLFotoInfraccion: rep.InfractionEvidenceURL,
	}
	if len(rep.OCRCandidates) > 0 {
		raw, err := json.Marshal(rep.OCRCandidates)
		if err != nil {
			return Report{}, fmt.Errorf("encode ocr candidates: %w", err)
		}
		dbReport.TextoOCR = datatypes.JSON(raw)
	}
	return dbReport, nil
}

func toReportWithOwner(row reportRow) report.ReportWithOwner {
	out := report.ReportWithOwner{
		ID:                    row.ID,
		DetectedPlate:         row.PlacaDetectada,
		Description:           row.Descripcion,
		PlateEvidenceURL:      row.URLFotoPlaca,
		InfractionEvidenceURL: row.URLFotoInfraccion,
		ReportedAt:            row.FechaReporte,
	}
	if row.PropietarioID != nil && row.NombreCompleto != nil {
		out.Owner = &report.OwnerName{FullName: *row.NombreCompleto}
	}
	return out
}
