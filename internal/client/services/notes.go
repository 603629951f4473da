// Package services contains the application services of the notepad
// client.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/01011010/notesum-hybrid/internal/client/repositories/pages"
	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/dbx"
	"github.com/01011010/notesum-hybrid/internal/models"
)

// NotesService manages pages in the local store. Every mutation leaves the
// page pending so the sync engine picks it up.
type NotesService interface {
	CreatePage(ctx context.Context, name string) (*models.Page, error)
	SavePage(ctx context.Context, id, content string) (*models.Page, error)
	RenamePage(ctx context.Context, id, name string) (*models.Page, error)
	ReorderPages(ctx context.Context, ids []string) error
	DeletePage(ctx context.Context, id string) error
	GetPage(ctx context.Context, id string) (*models.Page, error)
	ListPages(ctx context.Context) ([]models.Page, error)
	ListPending(ctx context.Context) ([]models.Page, error)
}

type notesService struct {
	db  *sql.DB
	now func() time.Time
}

func NewNotesService(db *sql.DB) NotesService {
	return &notesService{db: db, now: time.Now}
}

func (s *notesService) repo(db dbx.DBTX) pages.Repository {
	return pages.NewSQLiteRepository(db)
}

// touch stamps a local modification. LastModified always moves past
// LastSynced so a pending page is never mistaken for an uploaded one.
func (s *notesService) touch(p *models.Page) {
	now := s.now().UTC().Truncate(time.Millisecond)
	if !now.After(p.LastSynced) {
		now = p.LastSynced.Add(time.Millisecond)
	}
	if !now.After(p.LastModified) {
		now = p.LastModified.Add(time.Millisecond)
	}
	p.LastModified = now
	p.PendingSync = true
	p.SyncStatus = models.SyncStatusPending
}

func (s *notesService) CreatePage(ctx context.Context, name string) (*models.Page, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: page name is empty", common.ErrValidation)
	}

	var p *models.Page
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := s.repo(tx).ListAll(ctx)
		if err != nil {
			return err
		}
		order := 0
		for _, e := range existing {
			if e.Order >= order {
				order = e.Order + 1
			}
		}

		now := s.now().UTC().Truncate(time.Millisecond)
		p = &models.Page{
			ID:           uuid.NewString(),
			Name:         name,
			Order:        order,
			CreatedAt:    now,
			LastModified: now,
			PendingSync:  true,
			SyncStatus:   models.SyncStatusPending,
		}
		return s.repo(tx).Upsert(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return p, nil
}

func (s *notesService) update(ctx context.Context, id string, fn func(p *models.Page)) (*models.Page, error) {
	var p *models.Page
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		p, err = s.repo(tx).Get(ctx, id)
		if err != nil {
			return err
		}
		fn(p)
		s.touch(p)
		return s.repo(tx).Upsert(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *notesService) SavePage(ctx context.Context, id, content string) (*models.Page, error) {
	p, err := s.update(ctx, id, func(p *models.Page) { p.Content = content })
	if err != nil {
		return nil, fmt.Errorf("failed to save page: %w", err)
	}
	return p, nil
}

func (s *notesService) RenamePage(ctx context.Context, id, name string) (*models.Page, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: page name is empty", common.ErrValidation)
	}
	p, err := s.update(ctx, id, func(p *models.Page) { p.Name = name })
	if err != nil {
		return nil, fmt.Errorf("failed to rename page: %w", err)
	}
	return p, nil
}

// ReorderPages assigns positions following ids. Pages whose position does
// not change are left untouched.
func (s *notesService) ReorderPages(ctx context.Context, ids []string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		for order, id := range ids {
			p, err := repo.Get(ctx, id)
			if err != nil {
				return err
			}
			if p.Order == order {
				continue
			}
			p.Order = order
			s.touch(p)
			if err := repo.Upsert(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reorder pages: %w", err)
	}
	return nil
}

// DeletePage removes the page and records it in the deletion set in one
// transaction.
func (s *notesService) DeletePage(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		if _, err := repo.Get(ctx, id); err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		return repo.MarkDeleted(ctx, id, s.now())
	})
	if err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	return nil
}

func (s *notesService) GetPage(ctx context.Context, id string) (*models.Page, error) {
	return s.repo(s.db).Get(ctx, id)
}

func (s *notesService) ListPages(ctx context.Context) ([]models.Page, error) {
	return s.repo(s.db).ListAll(ctx)
}

func (s *notesService) ListPending(ctx context.Context) ([]models.Page, error) {
	return s.repo(s.db).ListPending(ctx)
}
