// Package relations owns the bidirectional recipe/ingredient association.
// The store offers single-document atomicity only. The invariant that an
// ingredient id appears in a recipe's list exactly when the recipe id
// appears in the ingredient's list is maintained purely by write ordering
// here. When a multi-document operation succeeds on only a subset of its
// writes, a PartialError names every failed write instead of rolling back.
package relations

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/secureboat/recipe-api/internal/auth"
	"github.com/secureboat/recipe-api/internal/datastore"
	"github.com/secureboat/recipe-api/internal/models"
)

var (
	// ErrAlreadyLinked rejects a second link for the same pair; quantity
	// updates go through SetQuantity instead.
	ErrAlreadyLinked = errors.New("the ingredient is already linked to the recipe")
	// ErrNotLinked is returned when the association exists on neither side.
	ErrNotLinked = errors.New("the ingredient is not linked to the recipe")
)

// Op identifies one write inside a multi-document operation.
type Op struct {
	Collection string
	ID         int64
	Action     string // "replace" or "delete"
	Err        error
}

func (o Op) String() string {
	return fmt.Sprintf("%s %s/%d: %v", o.Action, o.Collection, o.ID, o.Err)
}

// PartialError reports a multi-document operation that succeeded on a
// strict subset of its writes. The association invariant may be broken
// until an operator reconciles the listed failures; there is no automatic
// compensation.
type PartialError struct {
	Failed []Op
}

func (e *PartialError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, op := range e.Failed {
		parts[i] = op.String()
	}
	return fmt.Sprintf("%d write(s) failed, association may be inconsistent: %s",
		len(e.Failed), strings.Join(parts, "; "))
}

// Kind selects which side of the association a cascade delete starts from.
type Kind string

const (
	KindRecipe     Kind = "recipe"
	KindIngredient Kind = "ingredient"
)

// Synchronizer performs every operation that touches both sides of the
// association, expressed purely in terms of the document store.
type Synchronizer struct {
	store datastore.Store
}

func NewSynchronizer(store datastore.Store) *Synchronizer {
	return &Synchronizer{store: store}
}

// Link associates an ingredient with a recipe. Both documents must exist
// and be owned by sub, and the pair must not already be linked. The recipe
// is written first; if the ingredient write then fails, the one-sided link
// is reported as a PartialError, never swallowed.
func (y *Synchronizer) Link(ctx context.Context, sub, recipeID, ingredientID, quantity string) error {
	recipe, err := y.ownedRecipe(ctx, sub, recipeID)
	if err != nil {
		return err
	}
	ingredient, err := y.ownedIngredient(ctx, sub, ingredientID)
	if err != nil {
		return err
	}
	for _, ref := range recipe.Ingredients {
		if ref.ID == ingredient.ID {
			return ErrAlreadyLinked
		}
	}
	if quantity == "" {
		return &models.ValidationError{Fields: []string{"quantity"}}
	}

	recipe.Ingredients = append(recipe.Ingredients, models.IngredientRef{ID: ingredient.ID, Quantity: quantity})
	ingredient.Recipes = append(ingredient.Recipes, models.RecipeRef{ID: recipe.ID})
	ingredient.LastUpdated = time.Now().UTC()

	if _, err := y.store.Replace(ctx, datastore.CollectionRecipe, recipeID, recipe.Document()); err != nil {
		return fmt.Errorf("save linked recipe: %w", err)
	}
	if _, err := y.store.Replace(ctx, datastore.CollectionIngredient, ingredientID, ingredient.Document()); err != nil {
		return &PartialError{Failed: []Op{{
			Collection: datastore.CollectionIngredient,
			ID:         ingredient.ID,
			Action:     "replace",
			Err:        err,
		}}}
	}
	return nil
}

// Unlink removes the association from both sides. A side that does not
// carry the entry is left untouched; only when neither side carries it is
// the pair reported as not linked.
func (y *Synchronizer) Unlink(ctx context.Context, sub, recipeID, ingredientID string) error {
	recipe, err := y.ownedRecipe(ctx, sub, recipeID)
	if err != nil {
		return err
	}
	ingredient, err := y.ownedIngredient(ctx, sub, ingredientID)
	if err != nil {
		return err
	}

	foundInRecipe := false
	for i, ref := range recipe.Ingredients {
		if ref.ID == ingredient.ID {
			recipe.Ingredients = append(recipe.Ingredients[:i], recipe.Ingredients[i+1:]...)
			foundInRecipe = true
			break
		}
	}
	foundInIngredient := false
	for i, ref := range ingredient.Recipes {
		if ref.ID == recipe.ID {
			ingredient.Recipes = append(ingredient.Recipes[:i], ingredient.Recipes[i+1:]...)
			foundInIngredient = true
			break
		}
	}
	if !foundInRecipe && !foundInIngredient {
		return ErrNotLinked
	}

	if foundInRecipe {
		// Nothing has been written yet, so a failure here is total, not
		// partial; the ingredient side still holds whatever it held.
		if _, err := y.store.Replace(ctx, datastore.CollectionRecipe, recipeID, recipe.Document()); err != nil {
			return fmt.Errorf("save unlinked recipe: %w", err)
		}
	}
	if foundInIngredient {
		ingredient.LastUpdated = time.Now().UTC()
		if _, err := y.store.Replace(ctx, datastore.CollectionIngredient, ingredientID, ingredient.Document()); err != nil {
			if foundInRecipe {
				return &PartialError{Failed: []Op{{
					Collection: datastore.CollectionIngredient,
					ID:         ingredient.ID,
					Action:     "replace",
					Err:        err,
				}}}
			}
			return fmt.Errorf("save unlinked ingredient: %w", err)
		}
	}
	return nil
}

// SetQuantity overwrites the quantity on the recipe side of an existing
// link. Quantity is recipe-local data, so the ingredient document is never
// written.
func (y *Synchronizer) SetQuantity(ctx context.Context, sub, recipeID, ingredientID, quantity string) error {
	recipe, err := y.ownedRecipe(ctx, sub, recipeID)
	if err != nil {
		return err
	}
	ingredient, err := y.ownedIngredient(ctx, sub, ingredientID)
	if err != nil {
		return err
	}
	if quantity == "" {
		return &models.ValidationError{Fields: []string{"quantity"}}
	}
	found := false
	for i := range recipe.Ingredients {
		if recipe.Ingredients[i].ID == ingredient.ID {
			recipe.Ingredients[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		return ErrNotLinked
	}
	if _, err := y.store.Replace(ctx, datastore.CollectionRecipe, recipeID, recipe.Document()); err != nil {
		return fmt.Errorf("save recipe-ingredient link: %w", err)
	}
	return nil
}

// CascadeDelete strips the target's id from every sibling-type document
// owned by the same subject, then deletes the target. The sibling writes
// and the final delete run as one concurrent batch; the operation succeeds
// only if every write succeeds, otherwise the failed writes are reported.
// Sub-operations already dispatched run to completion even when a sibling
// fails; there is no rollback.
func (y *Synchronizer) CascadeDelete(ctx context.Context, sub string, kind Kind, id string) error {
	var targetCollection, siblingCollection string
	var targetID int64
	var siblings []datastore.Document

	switch kind {
	case KindRecipe:
		recipe, err := y.ownedRecipe(ctx, sub, id)
		if err != nil {
			return err
		}
		targetCollection, siblingCollection = datastore.CollectionRecipe, datastore.CollectionIngredient
		targetID = recipe.ID
	case KindIngredient:
		ingredient, err := y.ownedIngredient(ctx, sub, id)
		if err != nil {
			return err
		}
		targetCollection, siblingCollection = datastore.CollectionIngredient, datastore.CollectionRecipe
		targetID = ingredient.ID
	default:
		return fmt.Errorf("unknown cascade kind %q", kind)
	}

	// Bounded scan: scoped to one owner, so no pagination needed.
	siblings, err := y.store.QueryByAttribute(ctx, siblingCollection, "owner_id", "=", sub)
	if err != nil {
		return fmt.Errorf("search %s siblings: %w", siblingCollection, err)
	}

	type write struct {
		op  Op
		run func(ctx context.Context) error
	}
	var writes []write
	now := time.Now().UTC()
	for _, doc := range siblings {
		switch siblingCollection {
		case datastore.CollectionIngredient:
			sibling := models.IngredientFromDocument(doc)
			if !dropRecipeRef(sibling, targetID) {
				continue
			}
			sibling.LastUpdated = now
			writes = append(writes, write{
				op: Op{Collection: siblingCollection, ID: sibling.ID, Action: "replace"},
				run: func(ctx context.Context) error {
					_, err := y.store.Replace(ctx, datastore.CollectionIngredient, formatID(sibling.ID), sibling.Document())
					return err
				},
			})
		case datastore.CollectionRecipe:
			sibling := models.RecipeFromDocument(doc)
			if !dropIngredientRef(sibling, targetID) {
				continue
			}
			writes = append(writes, write{
				op: Op{Collection: siblingCollection, ID: sibling.ID, Action: "replace"},
				run: func(ctx context.Context) error {
					_, err := y.store.Replace(ctx, datastore.CollectionRecipe, formatID(sibling.ID), sibling.Document())
					return err
				},
			})
		}
	}
	writes = append(writes, write{
		op: Op{Collection: targetCollection, ID: targetID, Action: "delete"},
		run: func(ctx context.Context) error {
			return y.store.Delete(ctx, targetCollection, id)
		},
	})

	// All-or-report join: every write runs, every failure is collected.
	results := make([]error, len(writes))
	var wg sync.WaitGroup
	for i, w := range writes {
		wg.Add(1)
		go func(i int, w write) {
			defer wg.Done()
			results[i] = w.run(ctx)
		}(i, w)
	}
	wg.Wait()

	var failed []Op
	for i, err := range results {
		if err != nil {
			op := writes[i].op
			op.Err = err
			failed = append(failed, op)
		}
	}
	if len(failed) > 0 {
		return &PartialError{Failed: failed}
	}
	return nil
}

func (y *Synchronizer) ownedRecipe(ctx context.Context, sub, id string) (*models.Recipe, error) {
	doc, err := y.store.Get(ctx, datastore.CollectionRecipe, id)
	if err != nil {
		return nil, err
	}
	recipe := models.RecipeFromDocument(doc)
	if !auth.CanWrite(recipe.OwnerID, auth.Verified(sub)) {
		return nil, fmt.Errorf("recipe %s: %w", id, auth.ErrForbidden)
	}
	return recipe, nil
}

func (y *Synchronizer) ownedIngredient(ctx context.Context, sub, id string) (*models.Ingredient, error) {
	doc, err := y.store.Get(ctx, datastore.CollectionIngredient, id)
	if err != nil {
		return nil, err
	}
	ingredient := models.IngredientFromDocument(doc)
	if !auth.CanWrite(ingredient.OwnerID, auth.Verified(sub)) {
		return nil, fmt.Errorf("ingredient %s: %w", id, auth.ErrForbidden)
	}
	return ingredient, nil
}

func dropRecipeRef(ing *models.Ingredient, recipeID int64) bool {
	kept := ing.Recipes[:0]
	changed := false
	for _, ref := range ing.Recipes {
		if ref.ID == recipeID {
			changed = true
			continue
		}
		kept = append(kept, ref)
	}
	ing.Recipes = kept
	return changed
}

func dropIngredientRef(r *models.Recipe, ingredientID int64) bool {
	kept := r.Ingredients[:0]
	changed := false
	for _, ref := range r.Ingredients {
		if ref.ID == ingredientID {
			changed = true
			continue
		}
		kept = append(kept, ref)
	}
	r.Ingredients = kept
	return changed
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
