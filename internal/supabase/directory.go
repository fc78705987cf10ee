package supabase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"infraction-report-service/internal/domain/report"
)

const ownerView = "reporte_datos_view"

// OwnerDirectory resolves plates against the vehicle registry view.
type OwnerDirectory struct {
	client  *Client
	timeout time.Duration
}

func NewOwnerDirectory(client *Client, timeout time.Duration) *OwnerDirectory {
	return &OwnerDirectory{client: client, timeout: timeout}
}

// FindByPlate returns an empty slice when no owner is registered for plate.
func (d *OwnerDirectory) FindByPlate(ctx context.Context, plate string) ([]report.OwnerRecord, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("placa", "eq."+plate)
	q.Set("select", "propietario_id,email,nombre_completo")

	var owners []report.OwnerRecord
	if err := d.client.getJSON(ctx, "/rest/v1/"+ownerView, q, &owners); err != nil {
		return nil, fmt.Errorf("supabase owner lookup: %w", err)
	}
	if owners == nil {
		owners = []report.OwnerRecord{}
	}
	return owners, nil
}
