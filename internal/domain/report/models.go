package report

import (
	"time"
)

// UndetectedPlate marks a report whose plate photo yielded no OCR text.
const UndetectedPlate = "NO_DETECTADA"

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Evidence roles, used as object name suffixes.
const (
	RolePlate      = "placa"
	RoleInfraction = "infraccion"
)

type Image struct {
	Filename string
	Content  []byte
}

type Submission struct {
	PlatePhoto      Image
	InfractionPhoto Image
	Description     string
}

type OwnerRecord struct {
	OwnerID  *int64 `json:"propietario_id"`
	Email    string `json:"email"`
	FullName string `json:"nombre_completo"`
}

// InfractionReport is assembled once per pipeline run and written once.
// ReportedAt is left to the ledger.
type InfractionReport struct {
	OwnerID               *int64   `json:"propietario_id"`
	DetectedPlate         string   `json:"placa_detectada"`
	Description           string   `json:"descripcion"`
	PlateEvidenceURL      string   `json:"url_foto_placa"`
	InfractionEvidenceURL string   `json:"url_foto_infraccion"`
	OCRCandidates         []string `json:"-"`
}

type OwnerName struct {
	FullName string `json:"nombre_completo"`
}

// ReportWithOwner mirrors a PostgREST embed: the propietario_id column is
// replaced by the joined owner object, nil when the report has no owner.
type ReportWithOwner struct {
	ID                    int64      `json:"id"`
	Owner                 *OwnerName `json:"propietario_id"`
	DetectedPlate         string     `json:"placa_detectada"`
	Description           string     `json:"descripcion"`
	PlateEvidenceURL      string     `json:"url_foto_placa"`
	InfractionEvidenceURL string     `json:"url_foto_infraccion"`
	ReportedAt            time.Time  `json:"fecha_reporte"`
}

type ProcessResult struct {
	RequestID     string `json:"-"`
	Status        Status `json:"status"`
	DetectedPlate string `json:"placa_detectada"`
	Message       string `json:"mensaje"`
	OwnerFound    bool   `json:"-"`
	ReportSaved   bool   `json:"-"`
}
