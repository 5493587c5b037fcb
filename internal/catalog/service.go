package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const collectionNameConstraint = "collections_name_key"

type repository interface {
	CreateItem(ctx context.Context, item *models.Item) (*models.Item, error)
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	SaveItem(ctx context.Context, item *models.Item) (*models.Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) (bool, error)
	ListItems(ctx context.Context, collectionID *uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Item, error)
	CreateCollection(ctx context.Context, c *models.Collection) (*models.Collection, error)
	FindCollection(ctx context.Context, id uuid.UUID) (*models.Collection, error)
	SaveCollection(ctx context.Context, c *models.Collection) (*models.Collection, error)
	DeleteCollection(ctx context.Context, id uuid.UUID) (bool, error)
	ListCollections(ctx context.Context) ([]models.Collection, error)
}

// Service exposes catalog reads for the storefront and CRUD for the back office.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error)
	UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	ListItems(ctx context.Context, input ListItemsInput) (*ItemList, error)
	ListCollectionItems(ctx context.Context, collectionID uuid.UUID) ([]ItemDTO, error)

	CreateCollection(ctx context.Context, input CreateCollectionInput) (*CollectionDTO, error)
	GetCollection(ctx context.Context, id uuid.UUID) (*CollectionDTO, error)
	UpdateCollection(ctx context.Context, id uuid.UUID, input UpdateCollectionInput) (*CollectionDTO, error)
	DeleteCollection(ctx context.Context, id uuid.UUID) error
	ListCollections(ctx context.Context) ([]CollectionDTO, error)
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	name := strings.TrimSpace(input.Name)
	images := cleanStrings(input.Images)
	if name == "" || len(images) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Name and at least one image are required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.CollectionID != nil {
		if err := s.ensureCollection(ctx, *input.CollectionID); err != nil {
			return nil, err
		}
	}

	item := &models.Item{
		Name:         name,
		Price:        input.Price,
		Description:  optionalText(input.Description),
		Sizes:        optionalStrings(input.Sizes),
		Images:       pq.StringArray(images),
		CollectionID: input.CollectionID,
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	dto := NewItemDTO(*created)
	return &dto, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error) {
	item, err := s.loadItem(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := NewItemDTO(*item)
	return &dto, nil
}

func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	item, err := s.loadItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		item.Name = name
	}
	if input.Price.Set {
		if err := validatePrice(input.Price.Value); err != nil {
			return nil, err
		}
		item.Price = input.Price.Value
	}
	if input.Description.Set {
		item.Description = optionalText(input.Description.Value)
	}
	if input.Sizes.Set {
		var sizes []string
		if input.Sizes.Value != nil {
			sizes = *input.Sizes.Value
		}
		item.Sizes = optionalStrings(sizes)
	}
	if input.Images != nil {
		images := cleanStrings(*input.Images)
		if len(images) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one image is required")
		}
		item.Images = pq.StringArray(images)
	}
	if input.CollectionID.Set {
		if input.CollectionID.Value != nil {
			if err := s.ensureCollection(ctx, *input.CollectionID.Value); err != nil {
				return nil, err
			}
		}
		item.CollectionID = input.CollectionID.Value
	}

	saved, err := s.repo.SaveItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
	}
	dto := NewItemDTO(*saved)
	return &dto, nil
}

func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	removed, err := s.repo.DeleteItem(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return nil
}

func (s *service) ListItems(ctx context.Context, input ListItemsInput) (*ItemList, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListItems(ctx, input.CollectionID, pagination.LimitWithBuffer(input.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	rows, more := pagination.Trim(rows, input.Limit)

	out := &ItemList{Items: make([]ItemDTO, 0, len(rows))}
	for _, row := range rows {
		out.Items = append(out.Items, NewItemDTO(row))
	}
	if more {
		last := rows[len(rows)-1]
		out.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return out, nil
}

func (s *service) ListCollectionItems(ctx context.Context, collectionID uuid.UUID) ([]ItemDTO, error) {
	rows, err := s.repo.ListItems(ctx, &collectionID, pagination.MaxLimit, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list collection items")
	}
	out := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewItemDTO(row))
	}
	return out, nil
}

func (s *service) CreateCollection(ctx context.Context, input CreateCollectionInput) (*CollectionDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	created, err := s.repo.CreateCollection(ctx, &models.Collection{
		Name:        name,
		Description: optionalText(input.Description),
		Images:      pq.StringArray(cleanStrings(input.Images)),
	})
	if err != nil {
		return nil, collectionWriteError(err, "create collection")
	}
	dto := NewCollectionDTO(*created)
	return &dto, nil
}

// GetCollection returns the collection together with its items.
func (s *service) GetCollection(ctx context.Context, id uuid.UUID) (*CollectionDTO, error) {
	c, err := s.loadCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.ListCollectionItems(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := NewCollectionDTO(*c)
	dto.Items = items
	return &dto, nil
}

func (s *service) UpdateCollection(ctx context.Context, id uuid.UUID, input UpdateCollectionInput) (*CollectionDTO, error) {
	c, err := s.loadCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		c.Name = name
	}
	if input.Description.Set {
		c.Description = optionalText(input.Description.Value)
	}
	if input.Images != nil {
		c.Images = pq.StringArray(cleanStrings(*input.Images))
	}
	saved, err := s.repo.SaveCollection(ctx, c)
	if err != nil {
		return nil, collectionWriteError(err, "update collection")
	}
	dto := NewCollectionDTO(*saved)
	return &dto, nil
}

func (s *service) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	removed, err := s.repo.DeleteCollection(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete collection")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
	}
	return nil
}

func (s *service) ListCollections(ctx context.Context) ([]CollectionDTO, error) {
	rows, err := s.repo.ListCollections(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list collections")
	}
	out := make([]CollectionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewCollectionDTO(row))
	}
	return out, nil
}

func (s *service) loadItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.repo.FindItem(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

func (s *service) loadCollection(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	c, err := s.repo.FindCollection(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
	}
	return c, nil
}

func (s *service) ensureCollection(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindCollection(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeValidation, "collection does not exist").
				WithDetails(map[string]string{"collection_id": id.String()})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
	}
	return nil
}

func collectionWriteError(err error, msg string) error {
	if db.IsUniqueViolation(err, collectionNameConstraint) || db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a collection with this name already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func validatePrice(price *decimal.Decimal) error {
	if price != nil && price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	return nil
}

func optionalText(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// optionalStrings keeps NULL for "no size axis" instead of an empty array.
func optionalStrings(in []string) pq.StringArray {
	cleaned := cleanStrings(in)
	if len(cleaned) == 0 {
		return nil
	}
	return pq.StringArray(cleaned)
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
