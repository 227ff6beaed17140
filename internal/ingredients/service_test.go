package ingredients

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

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

func strPtr(s string) *string { return &s }
func idStr(id int64) string   { return strconv.FormatInt(id, 10) }

func TestCreate(t *testing.T) {
	svc, _ := newService(5)
	ctx := context.Background()

	before := time.Now().UTC()
	ing, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "salt", Stock: "500g"})
	require.NoError(t, err)
	require.Equal(t, "u1", ing.OwnerID)
	require.Equal(t, "500g", ing.Stock)
	require.NotZero(t, ing.ID)
	require.False(t, ing.LastUpdated.Before(before.Truncate(time.Second)))
	require.Empty(t, ing.Recipes)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(5)

	_, err := svc.Create(context.Background(), auth.Verified("u1"), CreateInput{Stock: "1kg"})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "name")

	// stock is optional
	_, err = svc.Create(context.Background(), auth.Verified("u1"), CreateInput{Name: "salt"})
	require.NoError(t, err)
}

func TestCreate_RequiresCredential(t *testing.T) {
	svc, _ := newService(5)

	_, err := svc.Create(context.Background(), auth.Anonymous(), CreateInput{Name: "salt"})
	require.ErrorIs(t, err, auth.ErrNoCredential)
	_, err = svc.Create(context.Background(), auth.Rejected(errors.New("bad")), CreateInput{Name: "salt"})
	require.ErrorIs(t, err, auth.ErrCredentialRejected)
}

func TestGet_OwnerScoped(t *testing.T) {
	svc, _ := newService(5)
	ctx := context.Background()

	ing, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "salt"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, auth.Verified("u1"), idStr(ing.ID))
	require.NoError(t, err)
	require.Equal(t, "salt", got.Name)

	// ingredients have no public flag; strangers never read them
	_, err = svc.Get(ctx, auth.Verified("u2"), idStr(ing.ID))
	require.ErrorIs(t, err, auth.ErrForbidden)
	_, err = svc.Get(ctx, auth.Anonymous(), idStr(ing.ID))
	require.ErrorIs(t, err, auth.ErrNoCredential)

	_, err = svc.Get(ctx, auth.Verified("u1"), "999")
	require.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestList_Paginated(t *testing.T) {
	svc, _ := newService(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "i" + strconv.Itoa(i)})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, auth.Verified("u2"), CreateInput{Name: "other"})
	require.NoError(t, err)

	page1, info, err := svc.List(ctx, auth.Verified("u1"), "")
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.True(t, info.MoreResults)

	page2, info, err := svc.List(ctx, auth.Verified("u1"), info.EndCursor)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.False(t, info.MoreResults)

	_, _, err = svc.List(ctx, auth.Anonymous(), "")
	require.ErrorIs(t, err, auth.ErrNoCredential)
}

func TestReplaceAndPatch(t *testing.T) {
	svc, _ := newService(5)
	ctx := context.Background()

	ing, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "salt", Stock: "1kg"})
	require.NoError(t, err)

	replaced, err := svc.Replace(ctx, auth.Verified("u1"), idStr(ing.ID), CreateInput{Name: "sea salt"})
	require.NoError(t, err)
	require.Equal(t, "sea salt", replaced.Name)
	// replace overwrites stock too, patch does not
	require.Equal(t, "", replaced.Stock)

	patched, err := svc.Patch(ctx, auth.Verified("u1"), idStr(ing.ID), PatchInput{Stock: strPtr("2kg")})
	require.NoError(t, err)
	require.Equal(t, "sea salt", patched.Name)
	require.Equal(t, "2kg", patched.Stock)

	_, err = svc.Patch(ctx, auth.Verified("u1"), idStr(ing.ID), PatchInput{Name: strPtr("")})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.Replace(ctx, auth.Verified("u2"), idStr(ing.ID), CreateInput{Name: "x"})
	require.ErrorIs(t, err, auth.ErrForbidden)
}

func TestDelete_CascadesToRecipes(t *testing.T) {
	svc, store := newService(5)
	ctx := context.Background()

	ing, err := svc.Create(ctx, auth.Verified("u1"), CreateInput{Name: "salt"})
	require.NoError(t, err)

	recipe := &models.Recipe{Name: "stew", Description: "d", OwnerID: "u1", Ingredients: []models.IngredientRef{}}
	rDoc, err := store.Save(ctx, datastore.CollectionRecipe, recipe.Document())
	require.NoError(t, err)
	recipeID := models.RecipeFromDocument(rDoc).ID

	rel := relations.NewSynchronizer(store)
	require.NoError(t, rel.Link(ctx, "u1", idStr(recipeID), idStr(ing.ID), "1"))

	require.NoError(t, svc.Delete(ctx, auth.Verified("u1"), idStr(ing.ID)))

	_, err = store.Get(ctx, datastore.CollectionIngredient, idStr(ing.ID))
	require.ErrorIs(t, err, datastore.ErrNotFound)

	gotR, err := store.Get(ctx, datastore.CollectionRecipe, idStr(recipeID))
	require.NoError(t, err)
	require.Empty(t, models.RecipeFromDocument(gotR).Ingredients)
}
