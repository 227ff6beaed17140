package models

import (
	"time"

	"github.com/secureboat/recipe-api/internal/datastore"
)

// RecipeRef is one entry in an ingredient's reverse list of linked recipes.
type RecipeRef struct {
	ID int64 `json:"id"`
}

// Ingredient is the typed view of an INGREDIENT document. LastUpdated is
// stamped server-side on every write.
type Ingredient struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Stock       string      `json:"stock"`
	OwnerID     string      `json:"owner_id"`
	LastUpdated time.Time   `json:"last_updated"`
	Recipes     []RecipeRef `json:"recipes"`
	Self        string      `json:"self,omitempty"`
}

func (i *Ingredient) Document() datastore.Document {
	recipes := make([]interface{}, len(i.Recipes))
	for j, ref := range i.Recipes {
		recipes[j] = map[string]interface{}{"id": ref.ID}
	}
	return datastore.Document{
		"name":         i.Name,
		"stock":        i.Stock,
		"owner_id":     i.OwnerID,
		"last_updated": i.LastUpdated,
		"recipes":      recipes,
	}
}

func IngredientFromDocument(doc datastore.Document) *Ingredient {
	ing := &Ingredient{
		ID:          docID(doc),
		Name:        docString(doc, "name"),
		Stock:       docString(doc, "stock"),
		OwnerID:     docString(doc, "owner_id"),
		LastUpdated: docTime(doc, "last_updated"),
		Recipes:     []RecipeRef{},
	}
	for _, entry := range docList(doc, "recipes") {
		ing.Recipes = append(ing.Recipes, RecipeRef{ID: entryID(entry)})
	}
	return ing
}
