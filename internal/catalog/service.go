package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"strings"
	"time"

	"streetlab/internal/common"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// =============================================
// 1. SERVICE STRUCTURE
// =============================================

// ImageStore persists catalog images.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Dependent is a table that references catalog rows. Deleting a drug or
// ingredient is refused while any dependent row matches.
type Dependent struct {
	Table  string
	Column string
	Where  string
}

var drugDependents = []Dependent{
	{Table: "drug_recipes", Column: "drug_id"},
	{Table: "user_drug_inventories", Column: "drug_id"},
	{Table: "drug_production_batches", Column: "drug_id", Where: "is_completed = false"},
	{Table: "drug_deals", Column: "drug_id", Where: "status = 'pending'"},
}

var ingredientDependents = []Dependent{
	{Table: "drug_recipes", Column: "ingredient_id"},
	{Table: "user_ingredient_inventories", Column: "ingredient_id"},
}

type Service struct {
	db     *gorm.DB
	images ImageStore
}

func NewService(db *gorm.DB, images ImageStore) *Service {
	return &Service{db: db, images: images}
}

// =============================================
// 2. LOOKUPS
// =============================================

func (s *Service) ListDrugs() ([]Drug, error) {
	var drugs []Drug
	if err := s.db.Order("risk_level ASC, name ASC").Find(&drugs).Error; err != nil {
		return nil, fmt.Errorf("failed to list drugs: %w", err)
	}
	return drugs, nil
}

func (s *Service) ListIngredients() ([]Ingredient, error) {
	var ingredients []Ingredient
	if err := s.db.Order("rarity ASC, name ASC").Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return ingredients, nil
}

// GetDrug returns a drug together with its recipe.
func (s *Service) GetDrug(drugID string) (*DrugDetail, error) {
	drug, err := LoadDrug(s.db, drugID)
	if err != nil {
		return nil, err
	}
	lines, err := RecipeFor(s.db, drugID)
	if err != nil {
		return nil, err
	}
	return &DrugDetail{Drug: drug, Recipe: lines}, nil
}

// GetDrugByName looks a drug up by display name, case-insensitively. A miss
// carries the closest names as suggestions.
func (s *Service) GetDrugByName(name string) (*DrugDetail, error) {
	drugs, err := s.ListDrugs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(drugs))
	for _, d := range drugs {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) || d.ID == Slug(name) {
			return s.GetDrug(d.ID)
		}
		names = append(names, d.Name)
	}
	return nil, common.NotFound("drug %q not found", name).With("suggestions", suggest(name, names, 3))
}

func (s *Service) GetIngredient(ingredientID string) (*Ingredient, error) {
	return LoadIngredient(s.db, ingredientID)
}

// LoadDrug reads one drug through db, which may be a transaction.
func LoadDrug(db *gorm.DB, drugID string) (*Drug, error) {
	var drug Drug
	if err := db.Where("id = ?", drugID).First(&drug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("drug %s not found", drugID).With("drug_id", drugID)
		}
		return nil, fmt.Errorf("failed to get drug: %w", err)
	}
	return &drug, nil
}

func LoadIngredient(db *gorm.DB, ingredientID string) (*Ingredient, error) {
	var ingredient Ingredient
	if err := db.Where("id = ?", ingredientID).First(&ingredient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("ingredient %s not found", ingredientID).With("ingredient_id", ingredientID)
		}
		return nil, fmt.Errorf("failed to get ingredient: %w", err)
	}
	return &ingredient, nil
}

// RecipeFor returns the recipe lines of a drug, ordered by ingredient id.
// An empty slice means the drug cannot currently be produced.
func RecipeFor(db *gorm.DB, drugID string) ([]RecipeLine, error) {
	var lines []RecipeLine
	err := db.Table("drug_recipes AS r").
		Select("r.ingredient_id AS ingredient_id, i.name AS ingredient_name, r.quantity AS quantity").
		Joins("JOIN ingredients i ON i.id = r.ingredient_id").
		Where("r.drug_id = ?", drugID).
		Order("r.ingredient_id ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return lines, nil
}

// =============================================
// 3. ADMIN CRUD
// =============================================

func (r *DrugRequest) toDrug() Drug {
	return Drug{
		ID:            Slug(r.Name),
		Name:          strings.TrimSpace(r.Name),
		Description:   r.Description,
		BasePrice:     r.BasePrice,
		RiskLevel:     r.RiskLevel,
		AddictionRate: r.AddictionRate,
		Bonuses:       r.Bonuses,
		DurationHours: r.DurationHours,
		SideEffects:   r.SideEffects,
	}
}

func (s *Service) CreateDrug(req *DrugRequest) (*Drug, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	drug := req.toDrug()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Drug{}).Where("id = ? OR name = ?", drug.ID, drug.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check drug: %w", err)
		}
		if count > 0 {
			return common.InvalidState("drug %s already exists", drug.ID).With("drug_id", drug.ID)
		}
		if err := tx.Create(&drug).Error; err != nil {
			return fmt.Errorf("failed to create drug: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &drug, nil
}

// UpdateDrug edits a drug in place. The id stays fixed even if the name changes.
func (s *Service) UpdateDrug(drugID string, req *DrugRequest) (*Drug, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var updated *Drug
	err := s.db.Transaction(func(tx *gorm.DB) error {
		drug, err := LoadDrug(tx, drugID)
		if err != nil {
			return err
		}
		next := req.toDrug()
		next.ID = drug.ID
		next.ImageKey = drug.ImageKey
		next.CreatedAt = drug.CreatedAt
		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("failed to update drug: %w", err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDrug removes a drug that nothing references any more. With dropRecipe
// the drug's own recipe rows do not block and are removed with it.
func (s *Service) DeleteDrug(drugID string, dropRecipe bool) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := LoadDrug(tx, drugID); err != nil {
			return err
		}

		deps := drugDependents
		if dropRecipe {
			deps = deps[1:]
		}
		blocking, err := countDependents(tx, deps, drugID)
		if err != nil {
			return err
		}
		if len(blocking) > 0 {
			return common.InvalidState("drug %s is still referenced", drugID).
				With("drug_id", drugID).
				With("dependents", blocking)
		}

		if err := tx.Where("drug_id = ?", drugID).Delete(&Recipe{}).Error; err != nil {
			return fmt.Errorf("failed to delete recipe: %w", err)
		}
		if err := tx.Where("id = ?", drugID).Delete(&Drug{}).Error; err != nil {
			return fmt.Errorf("failed to delete drug: %w", err)
		}
		return nil
	})
}

func (s *Service) CreateIngredient(req *IngredientRequest) (*Ingredient, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ingredient := Ingredient{
		ID:          Slug(req.Name),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Rarity:      req.Rarity,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Ingredient{}).Where("id = ? OR name = ?", ingredient.ID, ingredient.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check ingredient: %w", err)
		}
		if count > 0 {
			return common.InvalidState("ingredient %s already exists", ingredient.ID).With("ingredient_id", ingredient.ID)
		}
		if err := tx.Create(&ingredient).Error; err != nil {
			return fmt.Errorf("failed to create ingredient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func (s *Service) UpdateIngredient(ingredientID string, req *IngredientRequest) (*Ingredient, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var updated *Ingredient
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ingredient, err := LoadIngredient(tx, ingredientID)
		if err != nil {
			return err
		}
		ingredient.Name = strings.TrimSpace(req.Name)
		ingredient.Description = req.Description
		ingredient.Price = req.Price
		ingredient.Rarity = req.Rarity
		if err := tx.Save(ingredient).Error; err != nil {
			return fmt.Errorf("failed to update ingredient: %w", err)
		}
		updated = ingredient
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteIngredient(ingredientID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := LoadIngredient(tx, ingredientID); err != nil {
			return err
		}
		blocking, err := countDependents(tx, ingredientDependents, ingredientID)
		if err != nil {
			return err
		}
		if len(blocking) > 0 {
			return common.InvalidState("ingredient %s is still referenced", ingredientID).
				With("ingredient_id", ingredientID).
				With("dependents", blocking)
		}
		if err := tx.Where("id = ?", ingredientID).Delete(&Ingredient{}).Error; err != nil {
			return fmt.Errorf("failed to delete ingredient: %w", err)
		}
		return nil
	})
}

// SetRecipe replaces the recipe of a drug. An empty list makes the drug unproducible.
func (s *Service) SetRecipe(drugID string, lines map[string]int) ([]RecipeLine, error) {
	var result []RecipeLine
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := LoadDrug(tx, drugID); err != nil {
			return err
		}

		rows := make([]Recipe, 0, len(lines))
		for ingredientID, qty := range lines {
			if qty < 1 {
				return common.Validation("quantity for %s must be at least 1", ingredientID).With("ingredient_id", ingredientID)
			}
			if _, err := LoadIngredient(tx, ingredientID); err != nil {
				return err
			}
			rows = append(rows, Recipe{DrugID: drugID, IngredientID: ingredientID, Quantity: qty})
		}

		if err := tx.Where("drug_id = ?", drugID).Delete(&Recipe{}).Error; err != nil {
			return fmt.Errorf("failed to clear recipe: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save recipe: %w", err)
			}
		}

		var err error
		result, err = RecipeFor(tx, drugID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================
// 4. IMAGES
// =============================================

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// UploadDrugImage stores a new image for the drug and drops the previous one.
func (s *Service) UploadDrugImage(ctx context.Context, drugID, contentType string, body io.Reader) (*Drug, error) {
	if s.images == nil {
		return nil, common.InvalidState("image storage is not configured")
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, common.Validation("unsupported image type %s", contentType).With("content_type", contentType)
	}

	drug, err := LoadDrug(s.db, drugID)
	if err != nil {
		return nil, err
	}

	key := path.Join(ImageKeyPrefix, drug.ID, uuid.NewString()+ext)
	if err := s.images.Put(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	previous := drug.ImageKey
	if err := s.db.Model(&Drug{}).Where("id = ?", drug.ID).Update("image_key", key).Error; err != nil {
		return nil, fmt.Errorf("failed to save image key: %w", err)
	}
	drug.ImageKey = key

	if previous != "" {
		if err := s.images.Delete(ctx, previous); err != nil {
			log.Printf("⚠️ [CATALOG] could not delete old image %s: %v", previous, err)
		}
	}
	return drug, nil
}

// DrugImageURL presigns a short-lived GET for the drug's image.
func (s *Service) DrugImageURL(ctx context.Context, drugID string) (string, error) {
	if s.images == nil {
		return "", common.InvalidState("image storage is not configured")
	}
	drug, err := LoadDrug(s.db, drugID)
	if err != nil {
		return "", err
	}
	if drug.ImageKey == "" {
		return "", common.NotFound("drug %s has no image", drugID).With("drug_id", drugID)
	}
	return s.images.PresignGet(ctx, drug.ImageKey, 15*time.Minute)
}

// =============================================
// 5. HELPERS
// =============================================

func countDependents(tx *gorm.DB, deps []Dependent, id string) (map[string]int64, error) {
	blocking := map[string]int64{}
	for _, dep := range deps {
		if !tx.Migrator().HasTable(dep.Table) {
			continue
		}
		q := tx.Table(dep.Table).Where(dep.Column+" = ?", id)
		if dep.Where != "" {
			q = q.Where(dep.Where)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", dep.Table, err)
		}
		if n > 0 {
			blocking[dep.Table] = n
		}
	}
	return blocking, nil
}

// suggest returns up to limit candidates ordered by edit distance to query.
func suggest(query string, candidates []string, limit int) []string {
	type scored struct {
		name string
		dist int
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var results []scored
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(q, strings.ToLower(c))
		if d > len(c)/2+1 {
			continue
		}
		results = append(results, scored{name: c, dist: d})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].dist == results[j].dist {
			return results[i].name < results[j].name
		}
		return results[i].dist < results[j].dist
	})
	out := make([]string, 0, limit)
	for i := 0; i < len(results) && i < limit; i++ {
		out = append(out, results[i].name)
	}
	return out
}
