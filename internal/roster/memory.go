package roster

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory implements SiteCatalog and AssignmentStore in process.
// NOTE: dev and test use only; production deployments run the Postgres store.
type Memory struct {
	mu          sync.RWMutex
	sites       map[int64]Site
	byToken     map[string]int64
	assignments map[string]map[int64]struct{}
	nextID      int64
}

var (
	_ SiteCatalog     = (*Memory)(nil)
	_ AssignmentStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		sites:       make(map[int64]Site),
		byToken:     make(map[string]int64),
		assignments: make(map[string]map[int64]struct{}),
	}
}

func (m *Memory) CreateSite(ctx context.Context, site Site) (Site, error) {
	site.Name = strings.TrimSpace(site.Name)
	site.QRToken = strings.TrimSpace(site.QRToken)
	if site.Name == "" || site.QRToken == "" {
		return Site{}, ErrInvalidSite
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byToken[site.QRToken]; ok {
		return Site{}, ErrSiteExists
	}
	if site.ID == 0 {
		m.nextID++
		site.ID = m.nextID
	} else if _, ok := m.sites[site.ID]; ok {
		return Site{}, ErrSiteExists
	} else if site.ID > m.nextID {
		m.nextID = site.ID
	}
	site.CreatedAt = time.Now().UTC()
	m.sites[site.ID] = site
	m.byToken[site.QRToken] = site.ID
	return site, nil
}

func (m *Memory) GetSite(ctx context.Context, id int64) (Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	site, ok := m.sites[id]
	if !ok {
		return Site{}, ErrSiteNotFound
	}
	return site, nil
}

func (m *Memory) GetSiteByToken(ctx context.Context, token string) (Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byToken[strings.TrimSpace(token)]
	if !ok {
		return Site{}, ErrTokenNotFound
	}
	return m.sites[id], nil
}

func (m *Memory) IsAssigned(ctx context.Context, actorID string, siteID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.assignments[actorID]
	if !ok {
		return false, nil
	}
	_, ok = set[siteID]
	return ok, nil
}

func (m *Memory) Assign(ctx context.Context, actorID string, siteID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[siteID]; !ok {
		return ErrSiteNotFound
	}
	set, ok := m.assignments[actorID]
	if !ok {
		set = make(map[int64]struct{})
		m.assignments[actorID] = set
	}
	set[siteID] = struct{}{}
	return nil
}

func (m *Memory) Unassign(ctx context.Context, actorID string, siteID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.assignments[actorID]; ok {
		delete(set, siteID)
	}
	return nil
}
