package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type itemCreateRequest struct {
	Name         string           `json:"name"`
	Price        *decimal.Decimal `json:"price"`
	Description  *string          `json:"description"`
	Sizes        []string         `json:"sizes"`
	Images       []string         `json:"images"`
	CollectionID *uuid.UUID       `json:"collection_id"`
}

func (r itemCreateRequest) input() catalog.CreateItemInput {
	return catalog.CreateItemInput{
		Name:         r.Name,
		Price:        r.Price,
		Description:  r.Description,
		Sizes:        r.Sizes,
		Images:       r.Images,
		CollectionID: r.CollectionID,
	}
}

type itemUpdateRequest struct {
	Name         *string                         `json:"name"`
	Price        types.Nullable[decimal.Decimal] `json:"price"`
	Description  types.Nullable[string]          `json:"description"`
	Sizes        types.Nullable[[]string]        `json:"sizes"`
	Images       *[]string                       `json:"images"`
	CollectionID types.Nullable[uuid.UUID]       `json:"collection_id"`
}

type collectionCreateRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description *string  `json:"description"`
	Images      []string `json:"images"`
}

type collectionUpdateRequest struct {
	Name        *string                `json:"name"`
	Description types.Nullable[string] `json:"description"`
	Images      *[]string              `json:"images"`
}

// CreateItemResponse is the legacy create-item success body.
type CreateItemResponse struct {
	Success bool            `json:"success"`
	Item    catalog.ItemDTO `json:"item"`
}

// LegacyCreateItem keeps the storefront's original item-creation contract:
// 200 {success,item}, 400/500 {error}. Method filtering happens in the router.
func LegacyCreateItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteFlatError(ctx, logg, w, http.StatusInternalServerError, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var body itemCreateRequest
		if err := validators.DecodeLooseJSONBody(r, &body); err != nil {
			responses.WriteFlatError(ctx, logg, w, http.StatusBadRequest, err)
			return
		}

		item, err := svc.CreateItem(ctx, body.input())
		if err != nil {
			status := http.StatusInternalServerError
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
				status = http.StatusBadRequest
			}
			responses.WriteFlatError(ctx, logg, w, status, err)
			return
		}

		responses.WriteRaw(w, http.StatusOK, CreateItemResponse{Success: true, Item: *item})
	}
}

func ListItems(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		collectionID, err := validators.ParseOptionalQueryUUID(r, "collection_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := svc.ListItems(ctx, catalog.ListItemsInput{
			CollectionID: collectionID,
			Limit:        limit,
			Cursor:       r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.GetItem(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func ListCollections(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListCollections(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetCollection returns the collection with its items.
func GetCollection(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "collectionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.GetCollection(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

func AdminCreateItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body itemCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.CreateItem(r.Context(), body.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func AdminUpdateItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body itemUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.UpdateItem(r.Context(), id, catalog.UpdateItemInput{
			Name:         body.Name,
			Price:        body.Price,
			Description:  body.Description,
			Sizes:        body.Sizes,
			Images:       body.Images,
			CollectionID: body.CollectionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func AdminDeleteItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteItem(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func AdminCreateCollection(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body collectionCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.CreateCollection(r.Context(), catalog.CreateCollectionInput{
			Name:        validators.SanitizeString(body.Name, 200),
			Description: body.Description,
			Images:      body.Images,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, c)
	}
}

func AdminUpdateCollection(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "collectionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body collectionUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.UpdateCollection(r.Context(), id, catalog.UpdateCollectionInput{
			Name:        body.Name,
			Description: body.Description,
			Images:      body.Images,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// AdminDeleteCollection removes the collection; its items stay in the catalog unassigned.
func AdminDeleteCollection(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "collectionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteCollection(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
