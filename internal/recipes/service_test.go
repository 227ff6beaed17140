package recipes

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/secureboat/recipe-api/internal/auth"
	"github.com/secureboat/recipe-api/internal/datastore"
	"github.com/secureboat/recipe-api/internal/models"
	"github.com/secureboat/recipe-api/internal/relations"
)

func newService(pageSize int) (*Service, datastore.Store) {
	store := datastore.NewMemoryStore()
	return NewService(store, relations.NewSynchronizer(store), pageSize), store
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
func idStr(id int64) string   { return strconv.FormatInt(id, 10) }

func TestCreate_Valid(t *testing.T) {
	svc, _ := newService(5)
	ctx := context.Background()

	r, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{
		Name:        "stew",
		Description: "hearty",
		Public:      boolPtr(false),
	})
	require.NoError(t, err)
	require.Equal(t, "u1", r.OwnerID)
	require.False(t, r.Public)
	// instructions are optional and default to empty
	require.Equal(t, "", r.Instructions)
	require.NotNil(t, r.Ingredients)
	require.Empty(t, r.Ingredients)
	require.NotZero(t, r.ID)
}

func TestCreate_MissingFields(t *testing.T) {
	svc, _ := newService(5)

	_, err := svc.Create(context.Background(), auth.Verified("u1"), CreateInput{Name: "stew"})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "description")
	// public must be explicit, a missing flag is not false
	require.Contains(t, verr.Fields, "public")
}

func TestCreate_RequiresCredential(t *testing.T) {
	svc, _ := newService(5)
	in := CreateInput{Name: "n", Description: "d", Public: boolPtr(true)}

	_, err := svc.Create(context.Background(), auth.Anonymous(), in)
	require.ErrorIs(t, err, auth.ErrNoCredential)

	_, err = svc.Create(context.Background(), auth.Rejected(errors.New("bad")), in)
	require.ErrorIs(t, err, auth.ErrCredentialRejected)
}

func TestGet_VisibilityRules(t *testing.T) {
	svc, _ := newService(5)
	ctx := context.Background()

	private, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "p", Description: "d", Public: boolPtr(false)})
	require.NoError(t, err)
	public, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "q", Description: "d", Public: boolPtr(true)})
	require.NoError(t, err)

	// owner reads both
	_, err = svc.Get(ctx, auth.Verified("u1"), idStr(private.ID))
	require.NoError(t, err)

	// stranger: public yes, private no, and the id's existence is revealed
	_, err = svc.Get(ctx, auth.Verified("u2"), idStr(public.ID))
	require.NoError(t, err)
	_, err = svc.Get(ctx, auth.Verified("u2"), idStr(private.ID))
	require.ErrorIs(t, err, auth.ErrForbidden)

	// anonymous: public yes, private gets a credential error
	_, err = svc.Get(ctx, auth.Anonymous(), idStr(public.ID))
	require.NoError(t, err)
	_, err = svc.Get(ctx, auth.Anonymous(), idStr(private.ID))
	require.ErrorIs(t, err, auth.ErrNoCredential)

	// rejected credentials never read anything, not even public recipes
	_, err = svc.Get(ctx, auth.Rejected(errors.New("bad")), idStr(public.ID))
	require.ErrorIs(t, err, auth.ErrCredentialRejected)

	// unknown and non-numeric ids are both plain not-found
	_, err = svc.Get(ctx, auth.Verified("u1"), "999")
	require.ErrorIs(t, err, datastore.ErrNotFound)
	_, err = svc.Get(ctx, auth.Verified("u1"), "not-an-id")
	require.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestGet_ResolvesIngredientNames(t *testing.T) {
	svc, store := newService(5)
	ctx := context.Background()

	r, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "stew", Description: "d", Public: boolPtr(false)})
	require.NoError(t, err)

	ing := &models.Ingredient{Name: "salt", OwnerID: "u1", Recipes: []models.RecipeRef{}}
	ingDoc, err := store.Save(ctx, datastore.CollectionIngredient, ing.Document())
	require.NoError(t, err)
	ingID := models.IngredientFromDocument(ingDoc).ID

	require.NoError(t, svc.Link(ctx, auth.Verified("u1"), idStr(r.ID), idStr(ingID), "a pinch"))

	got, err := svc.Get(ctx, auth.Verified("u1"), idStr(r.ID))
	require.NoError(t, err)
	require.Len(t, got.Ingredients, 1)
	require.Equal(t, "salt", got.Ingredients[0].Name)
	require.Equal(t, "a pinch", got.Ingredients[0].Quantity)
}

func TestGet_DanglingIngredientRefFailsRead(t *testing.T) {
	svc, store := newService(5)
	ctx := context.Background()

	r, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "stew", Description: "d", Public: boolPtr(false)})
	require.NoError(t, err)

	// plant a reference to an ingredient that does not exist
	r.Ingredients = []models.IngredientRef{{ID: 999, Quantity: "1"}}
	_, err = store.Replace(ctx, datastore.CollectionRecipe, idStr(r.ID), r.Document())
	require.NoError(t, err)

	// a broken reference is an internal inconsistency, not a missing recipe
	_, err = svc.Get(ctx, auth.Verified("u1"), idStr(r.ID))
	require.Error(t, err)
	require.NotErrorIs(t, err, datastore.ErrNotFound)
}

func TestList_OwnerScopedAndPaginated(t *testing.T) {
	svc, _ := newService(3)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "r", Description: "d", Public: boolPtr(false)})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, auth.Verified("u2"), CreateInput{Name: "other", Description: "d", Public: boolPtr(false)})
	require.NoError(t, err)

	seen := 0
	cursor := ""
	for {
		page, info, err := svc.List(ctx, auth.Verified("u1"), cursor)
		require.NoError(t, err)
		for _, r := range page {
			require.Equal(t, "u1", r.OwnerID)
		}
		seen += len(page)
		if !info.MoreResults {
			break
		}
		cursor = info.EndCursor
	}
	require.Equal(t, 7, seen)
}

func TestList_AnonymousSeesPublicOnly(t *testing.T) {
	svc, _ := newService(10)
	ctx := context.Background()

	_, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "pub", Description: "d", Public: boolPtr(true)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "priv", Description: "d", Public: boolPtr(false)})
	require.NoError(t, err)

	page, _, err := svc.List(ctx, auth.Anonymous(), "")
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "pub", page[0].Name)
}

func TestList_RejectedCredentialHardFails(t *testing.T) {
	svc, _ := newService(10)
	_, _, err := svc.List(context.Background(), auth.Rejected(errors.New("bad")), "")
	require.ErrorIs(t, err, auth.ErrCredentialRejected)
}

func TestList_BadCursor(t *testing.T) {
	svc, _ := newService(10)
	_, err := svc.Create(context.Background(), auth.Verified("u1"), CreateInput{Name: "r", Description: "d", Public: boolPtr(false)})
	require.NoError(t, err)

	_, _, err = svc.List(context.Background(), auth.Verified("u1"), "%%bad%%")
	require.ErrorIs(t, err, datastore.ErrBadCursor)
}

func TestReplace_OverwritesAllFieldsKeepsLinks(t *testing.T) {
	svc, store := newService(5)
	ctx := context.Background()

	r, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "old", Description: "old", Public: boolPtr(false)})
	require.NoError(t, err)

	ing := &models.Ingredient{Name: "salt", OwnerID: "u1", Recipes: []models.RecipeRef{}}
	ingDoc, err := store.Save(ctx, datastore.CollectionIngredient, ing.Document())
	require.NoError(t, err)
	require.NoError(t, svc.Link(ctx, auth.Verified("u1"), idStr(r.ID), idStr(models.IngredientFromDocument(ingDoc).ID), "1"))

	got, err := svc.Replace(ctx, auth.Verified("u1"), idStr(r.ID), CreateInput{
		Name: "new", Description: "new", Instructions: "mix", Public: boolPtr(true),
	})
	require.NoError(t, err)
	require.Equal(t, "new", got.Name)
	require.True(t, got.Public)
	require.Equal(t, "u1", got.OwnerID)
	// the ingredient list is not client-settable
	require.Len(t, got.Ingredients, 1)
}

func TestPatch_MergesAndKeepsPublic(t *testing.T) {
	svc, _ := newService(5)
	ctx := context.Background()

	r, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "n", Description: "d", Public: boolPtr(true)})
	require.NoError(t, err)

	got, err := svc.Patch(ctx, auth.Verified("u1"), idStr(r.ID), PatchInput{Name: strPtr("renamed")})
	require.NoError(t, err)
	require.Equal(t, "renamed", got.Name)
	require.Equal(t, "d", got.Description)
	// omitting public keeps the stored value rather than resetting it
	require.True(t, got.Public)
}

func TestPatch_EmptyMergedNameRejected(t *testing.T) {
	svc, _ := newService(5)
	ctx := context.Background()

	r, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "n", Description: "d", Public: boolPtr(false)})
	require.NoError(t, err)

	_, err = svc.Patch(ctx, auth.Verified("u1"), idStr(r.ID), PatchInput{Name: strPtr("")})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestWrites_DenyNonOwners(t *testing.T) {
	svc, _ := newService(5)
	ctx := context.Background()

	// even a public recipe is only writable by its owner
	r, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "n", Description: "d", Public: boolPtr(true)})
	require.NoError(t, err)

	in := CreateInput{Name: "x", Description: "y", Public: boolPtr(true)}
	_, err = svc.Replace(ctx, auth.Verified("u2"), idStr(r.ID), in)
	require.ErrorIs(t, err, auth.ErrForbidden)
	_, err = svc.Patch(ctx, auth.Verified("u2"), idStr(r.ID), PatchInput{Name: strPtr("x")})
	require.ErrorIs(t, err, auth.ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, auth.Verified("u2"), idStr(r.ID)), auth.ErrForbidden)

	_, err = svc.Replace(ctx, auth.Anonymous(), idStr(r.ID), in)
	require.ErrorIs(t, err, auth.ErrNoCredential)
}

func TestDelete_CascadesToIngredients(t *testing.T) {
	svc, store := newService(5)
	ctx := context.Background()

	r, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "n", Description: "d", Public: boolPtr(false)})
	require.NoError(t, err)

	ing := &models.Ingredient{Name: "salt", OwnerID: "u1", Recipes: []models.RecipeRef{}}
	ingDoc, err := store.Save(ctx, datastore.CollectionIngredient, ing.Document())
	require.NoError(t, err)
	ingID := models.IngredientFromDocument(ingDoc).ID
	require.NoError(t, svc.Link(ctx, auth.Verified("u1"), idStr(r.ID), idStr(ingID), "1"))

	require.NoError(t, svc.Delete(ctx, auth.Verified("u1"), idStr(r.ID)))

	_, err = store.Get(ctx, datastore.CollectionRecipe, idStr(r.ID))
	require.ErrorIs(t, err, datastore.ErrNotFound)

	gotIng, err := store.Get(ctx, datastore.CollectionIngredient, idStr(ingID))
	require.NoError(t, err)
	require.Empty(t, models.IngredientFromDocument(gotIng).Recipes)
}
