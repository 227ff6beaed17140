package ingredients

import (
	"context"
	"fmt"
	"time"

	"github.com/secureboat/recipe-api/internal/auth"
	"github.com/secureboat/recipe-api/internal/datastore"
	"github.com/secureboat/recipe-api/internal/models"
	"github.com/secureboat/recipe-api/internal/relations"
)

// CreateInput carries the client payload for POST and PUT.
type CreateInput struct {
	Name  string `json:"name"`
	Stock string `json:"stock"`
}

// PatchInput carries a partial update; nil fields keep their stored value.
type PatchInput struct {
	Name  *string `json:"name"`
	Stock *string `json:"stock"`
}

// Service implements the ingredient resource operations. Ingredients have
// no public flag, so every operation is owner-scoped.
type Service struct {
	store    datastore.Store
	rel      *relations.Synchronizer
	pageSize int
}

func NewService(store datastore.Store, rel *relations.Synchronizer, pageSize int) *Service {
	return &Service{store: store, rel: rel, pageSize: pageSize}
}

// Create validates the payload, stamps the owner and the server-side
// last_updated timestamp, and initializes an empty recipe list.
func (s *Service) Create(ctx context.Context, ident auth.Identity, in CreateInput) (*models.Ingredient, error) {
	sub, err := ident.RequireSubject()
	if err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, &models.ValidationError{Fields: []string{"name"}}
	}
	ingredient := &models.Ingredient{
		Name:        in.Name,
		Stock:       in.Stock,
		OwnerID:     sub,
		LastUpdated: time.Now().UTC(),
		Recipes:     []models.RecipeRef{},
	}
	doc, err := s.store.Save(ctx, datastore.CollectionIngredient, ingredient.Document())
	if err != nil {
		return nil, fmt.Errorf("save new ingredient: %w", err)
	}
	return models.IngredientFromDocument(doc), nil
}

func (s *Service) Get(ctx context.Context, ident auth.Identity, id string) (*models.Ingredient, error) {
	return s.owned(ctx, ident, id)
}

// List returns one page of the subject's ingredients.
func (s *Service) List(ctx context.Context, ident auth.Identity, cursor string) ([]*models.Ingredient, datastore.PageInfo, error) {
	sub, err := ident.RequireSubject()
	if err != nil {
		return nil, datastore.PageInfo{}, err
	}
	docs, info, err := s.store.QueryPage(ctx, datastore.CollectionIngredient, "owner_id", "=", sub, s.pageSize, cursor)
	if err != nil {
		return nil, datastore.PageInfo{}, fmt.Errorf("search for ingredients: %w", err)
	}
	out := make([]*models.Ingredient, len(docs))
	for i, doc := range docs {
		out[i] = models.IngredientFromDocument(doc)
	}
	return out, info, nil
}

// Replace overwrites name and stock, refreshing last_updated and keeping
// the recipe list untouched.
func (s *Service) Replace(ctx context.Context, ident auth.Identity, id string, in CreateInput) (*models.Ingredient, error) {
	ingredient, err := s.owned(ctx, ident, id)
	if err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, &models.ValidationError{Fields: []string{"name"}}
	}
	ingredient.Name = in.Name
	ingredient.Stock = in.Stock
	ingredient.LastUpdated = time.Now().UTC()
	doc, err := s.store.Replace(ctx, datastore.CollectionIngredient, id, ingredient.Document())
	if err != nil {
		return nil, fmt.Errorf("save updated ingredient: %w", err)
	}
	return models.IngredientFromDocument(doc), nil
}

func (s *Service) Patch(ctx context.Context, ident auth.Identity, id string, in PatchInput) (*models.Ingredient, error) {
	ingredient, err := s.owned(ctx, ident, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		ingredient.Name = *in.Name
	}
	if in.Stock != nil {
		ingredient.Stock = *in.Stock
	}
	if ingredient.Name == "" {
		return nil, &models.ValidationError{Fields: []string{"name"}}
	}
	ingredient.LastUpdated = time.Now().UTC()
	doc, err := s.store.Replace(ctx, datastore.CollectionIngredient, id, ingredient.Document())
	if err != nil {
		return nil, fmt.Errorf("save updated ingredient: %w", err)
	}
	return models.IngredientFromDocument(doc), nil
}

// Delete cascades first: the ingredient id is stripped from every linked
// recipe before the ingredient document itself goes away.
func (s *Service) Delete(ctx context.Context, ident auth.Identity, id string) error {
	sub, err := ident.RequireSubject()
	if err != nil {
		return err
	}
	return s.rel.CascadeDelete(ctx, sub, relations.KindIngredient, id)
}

func (s *Service) owned(ctx context.Context, ident auth.Identity, id string) (*models.Ingredient, error) {
	if err := ident.Rejection(); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, datastore.CollectionIngredient, id)
	if err != nil {
		return nil, err
	}
	ingredient := models.IngredientFromDocument(doc)
	if !auth.CanWrite(ingredient.OwnerID, ident) {
		if ident.State != auth.StateVerified {
			return nil, auth.ErrNoCredential
		}
		return nil, fmt.Errorf("ingredient %s: %w", id, auth.ErrForbidden)
	}
	return ingredient, nil
}
