// Package qr maps scanned site QR payloads to catalog sites.
//
// Scanners emit either a bare token string or a small JSON object carrying a
// numeric site id and/or a token. The payload is decoded once at this boundary
// so nothing downstream has to sniff shapes.
package qr

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"fieldtrace.org/internal/roster"
)

var (
	// ErrInvalidQR indicates the payload named a site but its token does not
	// match the token bound to that site.
	ErrInvalidQR = errors.New("qr: token mismatch")
	// ErrUnknownQR indicates the payload resolved to no catalog site.
	ErrUnknownQR = errors.New("qr: unknown payload")
	// ErrEmptyPayload indicates a blank scan.
	ErrEmptyPayload = errors.New("qr: empty payload")
)

// Payload is the decoded form of a scanned QR string.
type Payload struct {
	Raw        string
	SiteID     int64  // 0 when absent
	Token      string // empty when absent
	Structured bool   // true when the raw payload was a JSON object
}

type structuredPayload struct {
	ID       json.Number `json:"id"`
	QRCodeID string      `json:"qrCodeId"`
	Token    string      `json:"token"`
}

// DecodePayload parses a scanned string into its tagged form. A payload that
// is not a JSON object is treated as a bare token.
func DecodePayload(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, ErrEmptyPayload
	}
	p := Payload{Raw: raw}
	if !strings.HasPrefix(raw, "{") {
		p.Token = raw
		return p, nil
	}
	var sp structuredPayload
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&sp); err != nil {
		// Malformed JSON from a scanner falls back to bare-token handling.
		p.Token = raw
		return p, nil
	}
	p.Structured = true
	if sp.ID != "" {
		if id, err := strconv.ParseInt(sp.ID.String(), 10, 64); err == nil && id > 0 {
			p.SiteID = id
		}
	}
	token := strings.TrimSpace(sp.Token)
	if token == "" {
		token = strings.TrimSpace(sp.QRCodeID)
	}
	p.Token = token
	return p, nil
}

// Resolver turns payloads into catalog sites. Read-only.
type Resolver struct {
	sites roster.SiteCatalog
}

func NewResolver(sites roster.SiteCatalog) *Resolver {
	return &Resolver{sites: sites}
}

// Resolve returns the site a scanned payload identifies.
//
// With an explicit site hint, resolution is skipped but the payload token is
// still verified against the site's stored qr_token: a structured payload is
// checked when it carries a token, a bare payload is compared directly.
// Without a hint, resolution tries the numeric id first, then the token.
func (r *Resolver) Resolve(ctx context.Context, rawPayload string, siteHint int64) (roster.Site, error) {
	payload, err := DecodePayload(rawPayload)
	if err != nil {
		return roster.Site{}, err
	}

	if siteHint > 0 {
		site, err := r.sites.GetSite(ctx, siteHint)
		if err != nil {
			if errors.Is(err, roster.ErrSiteNotFound) {
				return roster.Site{}, ErrUnknownQR
			}
			return roster.Site{}, err
		}
		if payload.Structured && payload.SiteID != 0 && payload.SiteID != site.ID {
			return roster.Site{}, ErrInvalidQR
		}
		if payload.Token != "" && payload.Token != site.QRToken {
			return roster.Site{}, ErrInvalidQR
		}
		return site, nil
	}

	if payload.SiteID != 0 {
		site, err := r.sites.GetSite(ctx, payload.SiteID)
		if err == nil {
			if payload.Token != "" && payload.Token != site.QRToken {
				return roster.Site{}, ErrInvalidQR
			}
			return site, nil
		}
		if !errors.Is(err, roster.ErrSiteNotFound) {
			return roster.Site{}, err
		}
	}

	if payload.Token != "" {
		site, err := r.sites.GetSiteByToken(ctx, payload.Token)
		if err == nil {
			return site, nil
		}
		if !errors.Is(err, roster.ErrTokenNotFound) {
			return roster.Site{}, err
		}
	}

	// Bare numeric payloads double as site ids on older badge printouts.
	if !payload.Structured {
		if id, err := strconv.ParseInt(payload.Raw, 10, 64); err == nil && id > 0 {
			site, err := r.sites.GetSite(ctx, id)
			if err == nil {
				return site, nil
			}
			if !errors.Is(err, roster.ErrSiteNotFound) {
				return roster.Site{}, err
			}
		}
	}

	return roster.Site{}, ErrUnknownQR
}
