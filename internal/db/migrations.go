package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Mirrors the Supabase project schema so the postgres backend can run
// against a plain database.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS propietarios (
		id              BIGSERIAL PRIMARY KEY,
		nombre_completo TEXT NOT NULL,
		email           TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS vehiculos (
		id              BIGSERIAL PRIMARY KEY,
		placa           TEXT NOT NULL,
		propietario_id  BIGINT NOT NULL REFERENCES propietarios(id),
		marca           TEXT,
		modelo          TEXT,
		color           TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_vehiculos_placa ON vehiculos(placa);`,
	`CREATE OR REPLACE VIEW reporte_datos_view AS
		SELECT v.placa, p.id AS propietario_id, p.email, p.nombre_completo
		FROM vehiculos v
		JOIN propietarios p ON p.id = v.propietario_id;`,
	`CREATE TABLE IF NOT EXISTS reportes (
		id                  BIGSERIAL PRIMARY KEY,
		propietario_id      BIGINT REFERENCES propietarios(id),
		placa_detectada     TEXT NOT NULL,
		descripcion         TEXT NOT NULL,
		url_foto_placa      TEXT NOT NULL,
		url_foto_infraccion TEXT NOT NULL,
		texto_ocr           JSONB,
		fecha_reporte       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_reportes_fecha_reporte ON reportes(fecha_reporte DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_reportes_placa_detectada ON reportes(placa_detectada);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
