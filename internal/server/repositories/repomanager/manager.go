// Package repomanager hands out typed repositories bound to one document
// store, plus the store itself for atomic batches that span collections.
package repomanager

import (
	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/clients"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/grants"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/media"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/packages"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/selections"
)

type RepositoryManager interface {
	Store() docstore.Store
	Clients() clients.Repository
	Grants() grants.Repository
	Selections() selections.Repository
	Packages() packages.Repository
	Media() media.Repository
}

type DocumentRepositoryManager struct {
	store      docstore.Store
	clients    *clients.DocumentRepository
	grants     *grants.DocumentRepository
	selections *selections.DocumentRepository
	packages   *packages.DocumentRepository
	media      *media.DocumentRepository
}

func NewDocumentRepositoryManager(store docstore.Store) *DocumentRepositoryManager {
	return &DocumentRepositoryManager{
		store:      store,
		clients:    clients.NewDocumentRepository(store),
		grants:     grants.NewDocumentRepository(store),
		selections: selections.NewDocumentRepository(store),
		packages:   packages.NewDocumentRepository(store),
		media:      media.NewDocumentRepository(store),
	}
}

func (m *DocumentRepositoryManager) Store() docstore.Store             { return m.store }
func (m *DocumentRepositoryManager) Clients() clients.Repository       { return m.clients }
func (m *DocumentRepositoryManager) Grants() grants.Repository         { return m.grants }
func (m *DocumentRepositoryManager) Selections() selections.Repository { return m.selections }
func (m *DocumentRepositoryManager) Packages() packages.Repository     { return m.packages }
func (m *DocumentRepositoryManager) Media() media.Repository           { return m.media }
