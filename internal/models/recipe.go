package models

import (
	"github.com/secureboat/recipe-api/internal/datastore"
)

// IngredientRef is one entry in a recipe's ingredient list. Quantity is
// recipe-local data; Name is resolved from the ingredient document at read
// time and never stored on the recipe.
type IngredientRef struct {
	ID       int64  `json:"id"`
	Quantity string `json:"quantity"`
	Name     string `json:"name,omitempty"`
}

// Recipe is the typed view of a RECIPE document.
type Recipe struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Instructions string          `json:"instructions"`
	OwnerID      string          `json:"owner_id"`
	Public       bool            `json:"public"`
	Ingredients  []IngredientRef `json:"ingredients"`
	Self         string          `json:"self,omitempty"`
}

// Document builds the untyped document persisted for this recipe. The id
// and self locator are not part of the stored data.
func (r *Recipe) Document() datastore.Document {
	ingredients := make([]interface{}, len(r.Ingredients))
	for i, ref := range r.Ingredients {
		ingredients[i] = map[string]interface{}{
			"id":       ref.ID,
			"quantity": ref.Quantity,
		}
	}
	return datastore.Document{
		"name":         r.Name,
		"description":  r.Description,
		"instructions": r.Instructions,
		"owner_id":     r.OwnerID,
		"public":       r.Public,
		"ingredients":  ingredients,
	}
}

// RecipeFromDocument translates a stored document back into a Recipe.
func RecipeFromDocument(doc datastore.Document) *Recipe {
	r := &Recipe{
		ID:           docID(doc),
		Name:         docString(doc, "name"),
		Description:  docString(doc, "description"),
		Instructions: docString(doc, "instructions"),
		OwnerID:      docString(doc, "owner_id"),
		Public:       docBool(doc, "public"),
		Ingredients:  []IngredientRef{},
	}
	for _, entry := range docList(doc, "ingredients") {
		r.Ingredients = append(r.Ingredients, IngredientRef{
			ID:       entryID(entry),
			Quantity: entryString(entry, "quantity"),
		})
	}
	return r
}
