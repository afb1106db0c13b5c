// Package roster holds the site catalog and actor-to-site assignments
// consumed by the presence core as authorization data.
package roster

import (
	"context"
	"errors"
	"time"
)

// Site is a physical client location with a QR token bound at onboarding.
type Site struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	QRToken   string    `json:"qr_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrSiteNotFound  = errors.New("roster: site not found")
	ErrSiteExists    = errors.New("roster: site already exists")
	ErrInvalidSite   = errors.New("roster: invalid site")
	ErrTokenNotFound = errors.New("roster: qr token not found")
)

// SiteCatalog resolves sites by id or by their bound QR token.
type SiteCatalog interface {
	GetSite(ctx context.Context, id int64) (Site, error)
	GetSiteByToken(ctx context.Context, token string) (Site, error)
	CreateSite(ctx context.Context, site Site) (Site, error)
}

// AssignmentStore answers whether an actor may act at a site.
type AssignmentStore interface {
	IsAssigned(ctx context.Context, actorID string, siteID int64) (bool, error)
	Assign(ctx context.Context, actorID string, siteID int64) error
	Unassign(ctx context.Context, actorID string, siteID int64) error
}
