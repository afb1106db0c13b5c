package roster

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Postgres implements SiteCatalog and AssignmentStore over database/sql.
type Postgres struct {
	db *sql.DB
}

var (
	_ SiteCatalog     = (*Postgres)(nil)
	_ AssignmentStore = (*Postgres)(nil)
)

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) CreateSite(ctx context.Context, site Site) (Site, error) {
	site.Name = strings.TrimSpace(site.Name)
	site.QRToken = strings.TrimSpace(site.QRToken)
	if site.Name == "" || site.QRToken == "" {
		return Site{}, ErrInvalidSite
	}
	err := p.db.QueryRowContext(ctx, `
		insert into sites(name, latitude, longitude, qr_token)
		values ($1,$2,$3,$4)
		on conflict (qr_token) do nothing
		returning id, created_at
	`, site.Name, site.Latitude, site.Longitude, site.QRToken).Scan(&site.ID, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Site{}, ErrSiteExists
	}
	if err != nil {
		return Site{}, err
	}
	return site, nil
}

func (p *Postgres) GetSite(ctx context.Context, id int64) (Site, error) {
	var site Site
	err := p.db.QueryRowContext(ctx, `
		select id, name, latitude, longitude, qr_token, created_at
		from sites where id=$1
	`, id).Scan(&site.ID, &site.Name, &site.Latitude, &site.Longitude, &site.QRToken, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Site{}, ErrSiteNotFound
	}
	if err != nil {
		return Site{}, err
	}
	return site, nil
}

func (p *Postgres) GetSiteByToken(ctx context.Context, token string) (Site, error) {
	var site Site
	err := p.db.QueryRowContext(ctx, `
		select id, name, latitude, longitude, qr_token, created_at
		from sites where qr_token=$1
	`, strings.TrimSpace(token)).Scan(&site.ID, &site.Name, &site.Latitude, &site.Longitude, &site.QRToken, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Site{}, ErrTokenNotFound
	}
	if err != nil {
		return Site{}, err
	}
	return site, nil
}

func (p *Postgres) IsAssigned(ctx context.Context, actorID string, siteID int64) (bool, error) {
	var assigned bool
	err := p.db.QueryRowContext(ctx, `
		select exists(select 1 from site_assignments where actor_id=$1 and site_id=$2)
	`, actorID, siteID).Scan(&assigned)
	if err != nil {
		return false, err
	}
	return assigned, nil
}

func (p *Postgres) Assign(ctx context.Context, actorID string, siteID int64) error {
	res, err := p.db.ExecContext(ctx, `
		insert into site_assignments(actor_id, site_id)
		select $1, id from sites where id=$2
		on conflict do nothing
	`, actorID, siteID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either the site does not exist or the assignment is already present.
		var exists bool
		if err := p.db.QueryRowContext(ctx, `select exists(select 1 from sites where id=$1)`, siteID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrSiteNotFound
		}
	}
	return nil
}

func (p *Postgres) Unassign(ctx context.Context, actorID string, siteID int64) error {
	_, err := p.db.ExecContext(ctx, `
		delete from site_assignments where actor_id=$1 and site_id=$2
	`, actorID, siteID)
	return err
}
