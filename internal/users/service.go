package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/secureboat/recipe-api/internal/auth"
	"github.com/secureboat/recipe-api/internal/datastore"
	"github.com/secureboat/recipe-api/internal/models"
)

// Service maintains the cached user profiles in the USER collection and
// handles whole-account deletion.
type Service struct {
	store datastore.Store
}

func NewService(store datastore.Store) *Service {
	return &Service{store: store}
}

// UpsertFromClaims creates or refreshes a profile from verified ID-token
// claims. Returns nil without error when the claims carry no subject.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, nil
	}
	u := &models.User{Sub: sub}
	u.Email, _ = claims["email"].(string)
	u.Name, _ = claims["name"].(string)
	u.GivenName, _ = claims["given_name"].(string)
	u.FamilyName, _ = claims["family_name"].(string)

	now := time.Now().UTC()
	existing, err := s.GetBySub(ctx, sub)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		u.CreatedAt = now
		u.UpdatedAt = now
		doc, err := s.store.Save(ctx, datastore.CollectionUser, u.Document())
		if err != nil {
			return nil, fmt.Errorf("save user profile: %w", err)
		}
		return models.UserFromDocument(doc), nil
	}
	u.ID = existing.ID
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = now
	doc, err := s.store.Replace(ctx, datastore.CollectionUser, strconv.FormatInt(existing.ID, 10), u.Document())
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return models.UserFromDocument(doc), nil
}

// GetBySub returns the cached profile for a subject, or nil when none
// exists.
func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	docs, err := s.store.QueryByAttribute(ctx, datastore.CollectionUser, "sub", "=", sub)
	if err != nil {
		return nil, fmt.Errorf("search for user: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return models.UserFromDocument(docs[0]), nil
}

// List returns every cached profile. The USER collection stays small, so an
// unbounded scan is fine here.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	docs, err := s.store.List(ctx, datastore.CollectionUser)
	if err != nil {
		return nil, fmt.Errorf("search for users: %w", err)
	}
	out := make([]*models.User, len(docs))
	for i, doc := range docs {
		out[i] = models.UserFromDocument(doc)
	}
	return out, nil
}

// DeleteAccount removes the subject's profile together with every recipe
// and ingredient they own. All deletes run as one concurrent batch; any
// failures are reported per document rather than collapsed into one error.
func (s *Service) DeleteAccount(ctx context.Context, ident auth.Identity, userID string) error {
	sub, err := ident.RequireSubject()
	if err != nil {
		return err
	}
	if sub != userID {
		return fmt.Errorf("user %s: %w", userID, auth.ErrForbidden)
	}
	profile, err := s.GetBySub(ctx, sub)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("user %s: %w", userID, datastore.ErrNotFound)
	}

	type target struct {
		collection string
		id         int64
	}
	targets := []target{{datastore.CollectionUser, profile.ID}}
	for _, collection := range []string{datastore.CollectionRecipe, datastore.CollectionIngredient} {
		docs, err := s.store.QueryByAttribute(ctx, collection, "owner_id", "=", sub)
		if err != nil {
			return fmt.Errorf("search %s for owned documents: %w", collection, err)
		}
		for _, doc := range docs {
			if id, ok := doc["id"].(int64); ok {
				targets = append(targets, target{collection, id})
			}
		}
	}

	results := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t target) {
			defer wg.Done()
			results[i] = s.store.Delete(ctx, t.collection, strconv.FormatInt(t.id, 10))
		}(i, t)
	}
	wg.Wait()

	var failed []string
	for i, err := range results {
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s/%d: %v", targets[i].collection, targets[i].id, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("account delete incomplete, %d document(s) not removed: %s: %w",
			len(failed), strings.Join(failed, "; "), datastore.ErrUnavailable)
	}
	return nil
}
