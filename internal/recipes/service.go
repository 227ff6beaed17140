package recipes

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/secureboat/recipe-api/internal/auth"
	"github.com/secureboat/recipe-api/internal/datastore"
	"github.com/secureboat/recipe-api/internal/models"
	"github.com/secureboat/recipe-api/internal/relations"
)

// CreateInput carries the client payload for POST and PUT. Public is a
// pointer so an explicit false is distinguishable from a missing field.
type CreateInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Public       *bool  `json:"public"`
}

// PatchInput carries a partial update; nil fields keep their stored value.
type PatchInput struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Instructions *string `json:"instructions"`
	Public       *bool   `json:"public"`
}

// Service implements the recipe resource operations over the document
// store, the authorization guard and the relationship synchronizer.
type Service struct {
	store    datastore.Store
	rel      *relations.Synchronizer
	pageSize int
}

func NewService(store datastore.Store, rel *relations.Synchronizer, pageSize int) *Service {
	return &Service{store: store, rel: rel, pageSize: pageSize}
}

func (in CreateInput) validate() error {
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if in.Public == nil {
		missing = append(missing, "public")
	}
	if len(missing) > 0 {
		return &models.ValidationError{Fields: missing}
	}
	return nil
}

// Create validates the payload, stamps the owner from the verified subject
// and initializes an empty ingredient list.
func (s *Service) Create(ctx context.Context, ident auth.Identity, in CreateInput) (*models.Recipe, error) {
	sub, err := ident.RequireSubject()
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	recipe := &models.Recipe{
		Name:         in.Name,
		Description:  in.Description,
		Instructions: in.Instructions,
		OwnerID:      sub,
		Public:       *in.Public,
		Ingredients:  []models.IngredientRef{},
	}
	doc, err := s.store.Save(ctx, datastore.CollectionRecipe, recipe.Document())
	if err != nil {
		return nil, fmt.Errorf("save new recipe: %w", err)
	}
	return models.RecipeFromDocument(doc), nil
}

// Get returns a recipe after the read guard. Missing ids and denied reads
// stay distinct: the id's existence is revealed, the content is not.
// Ingredient names are resolved with a concurrent fan-out; any lookup
// failure fails the whole read.
func (s *Service) Get(ctx context.Context, ident auth.Identity, id string) (*models.Recipe, error) {
	if err := ident.Rejection(); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, datastore.CollectionRecipe, id)
	if err != nil {
		return nil, err
	}
	recipe := models.RecipeFromDocument(doc)
	if !auth.CanRead(recipe.OwnerID, recipe.Public, ident) {
		return nil, auth.DenyRead(ident)
	}
	if err := s.resolveNames(ctx, recipe); err != nil {
		return nil, err
	}
	return recipe, nil
}

// List returns one page of recipes: those owned by the verified subject, or
// the public ones for anonymous callers. Rejected credentials never degrade
// to the anonymous listing.
func (s *Service) List(ctx context.Context, ident auth.Identity, cursor string) ([]*models.Recipe, datastore.PageInfo, error) {
	if err := ident.Rejection(); err != nil {
		return nil, datastore.PageInfo{}, err
	}
	var (
		docs []datastore.Document
		info datastore.PageInfo
		err  error
	)
	if ident.State == auth.StateVerified {
		docs, info, err = s.store.QueryPage(ctx, datastore.CollectionRecipe, "owner_id", "=", ident.Subject, s.pageSize, cursor)
	} else {
		docs, info, err = s.store.QueryPage(ctx, datastore.CollectionRecipe, "public", "=", true, s.pageSize, cursor)
	}
	if err != nil {
		return nil, datastore.PageInfo{}, fmt.Errorf("search for recipes: %w", err)
	}
	out := make([]*models.Recipe, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		recipe := models.RecipeFromDocument(doc)
		out[i] = recipe
		g.Go(func() error {
			return s.resolveNames(gctx, recipe)
		})
	}
	if err := g.Wait(); err != nil {
		// No partial page: one failed lookup fails the whole response.
		return nil, datastore.PageInfo{}, err
	}
	return out, info, nil
}

// Replace overwrites every client-settable field, keeping the owner and the
// relationship list untouched.
func (s *Service) Replace(ctx context.Context, ident auth.Identity, id string, in CreateInput) (*models.Recipe, error) {
	recipe, err := s.owned(ctx, ident, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	recipe.Name = in.Name
	recipe.Description = in.Description
	recipe.Instructions = in.Instructions
	recipe.Public = *in.Public
	doc, err := s.store.Replace(ctx, datastore.CollectionRecipe, id, recipe.Document())
	if err != nil {
		return nil, fmt.Errorf("save updated recipe: %w", err)
	}
	return models.RecipeFromDocument(doc), nil
}

// Patch merges the supplied fields into the stored recipe; omitted fields,
// including public, keep their stored value.
func (s *Service) Patch(ctx context.Context, ident auth.Identity, id string, in PatchInput) (*models.Recipe, error) {
	recipe, err := s.owned(ctx, ident, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		recipe.Name = *in.Name
	}
	if in.Description != nil {
		recipe.Description = *in.Description
	}
	if in.Instructions != nil {
		recipe.Instructions = *in.Instructions
	}
	if in.Public != nil {
		recipe.Public = *in.Public
	}
	if recipe.Name == "" || recipe.Description == "" {
		return nil, &models.ValidationError{Fields: []string{"name", "description"}}
	}
	doc, err := s.store.Replace(ctx, datastore.CollectionRecipe, id, recipe.Document())
	if err != nil {
		return nil, fmt.Errorf("save updated recipe: %w", err)
	}
	return models.RecipeFromDocument(doc), nil
}

// Delete cascades first: the recipe id is stripped from every linked
// ingredient before the recipe document itself goes away.
func (s *Service) Delete(ctx context.Context, ident auth.Identity, id string) error {
	sub, err := ident.RequireSubject()
	if err != nil {
		return err
	}
	return s.rel.CascadeDelete(ctx, sub, relations.KindRecipe, id)
}

// Link attaches an ingredient with a quantity to a recipe.
func (s *Service) Link(ctx context.Context, ident auth.Identity, recipeID, ingredientID, quantity string) error {
	sub, err := ident.RequireSubject()
	if err != nil {
		return err
	}
	return s.rel.Link(ctx, sub, recipeID, ingredientID, quantity)
}

// SetQuantity updates the quantity of an existing link.
func (s *Service) SetQuantity(ctx context.Context, ident auth.Identity, recipeID, ingredientID, quantity string) error {
	sub, err := ident.RequireSubject()
	if err != nil {
		return err
	}
	return s.rel.SetQuantity(ctx, sub, recipeID, ingredientID, quantity)
}

// Unlink detaches an ingredient from a recipe.
func (s *Service) Unlink(ctx context.Context, ident auth.Identity, recipeID, ingredientID string) error {
	sub, err := ident.RequireSubject()
	if err != nil {
		return err
	}
	return s.rel.Unlink(ctx, sub, recipeID, ingredientID)
}

func (s *Service) owned(ctx context.Context, ident auth.Identity, id string) (*models.Recipe, error) {
	if err := ident.Rejection(); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, datastore.CollectionRecipe, id)
	if err != nil {
		return nil, err
	}
	recipe := models.RecipeFromDocument(doc)
	if !auth.CanWrite(recipe.OwnerID, ident) {
		if ident.State != auth.StateVerified {
			return nil, auth.ErrNoCredential
		}
		return nil, fmt.Errorf("recipe %s: %w", id, auth.ErrForbidden)
	}
	return recipe, nil
}

// resolveNames annotates each ingredient reference with the ingredient's
// current name via concurrent point lookups.
func (s *Service) resolveNames(ctx context.Context, recipe *models.Recipe) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range recipe.Ingredients {
		ref := &recipe.Ingredients[i]
		g.Go(func() error {
			doc, err := s.store.Get(gctx, datastore.CollectionIngredient, strconv.FormatInt(ref.ID, 10))
			if err != nil {
				// Deliberately not wrapped: a missing linked ingredient is a
				// broken reference, not a missing recipe, and must surface
				// as a service failure rather than a 404.
				return fmt.Errorf("failure while getting ingredient names: %v", err)
			}
			ref.Name = models.IngredientFromDocument(doc).Name
			return nil
		})
	}
	return g.Wait()
}
