package app

import (
	"context"
	"errors"
	"strings"

	"supportdesk/pkg/domain"
	"supportdesk/pkg/store"
)

// ProductInput is the payload of product creation. ID is caller supplied.
type ProductInput struct {
	ID          int64
	Name        string
	Model       string
	Category    string
	Brand       string
	Price       float64
	Description string
}

// ProductPatch updates the non-nil fields of a product.
type ProductPatch struct {
	Name        *string
	Model       *string
	Category    *string
	Brand       *string
	Price       *float64
	Description *string
}

// ListProducts returns the whole catalog.
func (a *App) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return a.store.ListProducts(ctx)
}

// GetProduct returns one product.
func (a *App) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, found, err := a.store.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !found {
		return domain.Product{}, ErrProductNotFound
	}
	return p, nil
}

// AddProduct creates a catalog entry under a caller-chosen id.
func (a *App) AddProduct(ctx context.Context, caller domain.Principal, in ProductInput) (domain.Product, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.Product{}, err
	}
	name := strings.TrimSpace(in.Name)
	if in.ID <= 0 || name == "" {
		return domain.Product{}, invalid("id and name are required")
	}
	if in.Price < 0 {
		return domain.Product{}, invalid("price must not be negative")
	}
	product := domain.Product{
		ID:          in.ID,
		Name:        name,
		Model:       strings.TrimSpace(in.Model),
		Category:    strings.TrimSpace(in.Category),
		Brand:       strings.TrimSpace(in.Brand),
		Price:       in.Price,
		Description: strings.TrimSpace(in.Description),
	}
	err := a.store.Tx(ctx, func(tx store.Store) error {
		if _, found, err := tx.GetProduct(ctx, product.ID); err != nil {
			return err
		} else if found {
			return conflict("Product with this ID already exists")
		}
		if err := tx.CreateProduct(ctx, &product); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return conflict("Product with this ID already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// UpdateProduct applies patch to product id.
func (a *App) UpdateProduct(ctx context.Context, caller domain.Principal, id int64, patch ProductPatch) (domain.Product, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.Product{}, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.Product{}, invalid("name must not be empty")
	}
	if patch.Price != nil && *patch.Price < 0 {
		return domain.Product{}, invalid("price must not be negative")
	}
	var product domain.Product
	err := a.store.Tx(ctx, func(tx store.Store) error {
		p, found, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrProductNotFound
		}
		setTrimmed(&p.Name, patch.Name)
		setTrimmed(&p.Model, patch.Model)
		setTrimmed(&p.Category, patch.Category)
		setTrimmed(&p.Brand, patch.Brand)
		setTrimmed(&p.Description, patch.Description)
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		product = p
		return tx.SaveProduct(ctx, p)
	})
	return product, err
}

// DeleteProduct removes product id.
func (a *App) DeleteProduct(ctx context.Context, caller domain.Principal, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	return a.store.Tx(ctx, func(tx store.Store) error {
		if _, found, err := tx.GetProduct(ctx, id); err != nil {
			return err
		} else if !found {
			return ErrProductNotFound
		}
		return tx.DeleteProduct(ctx, id)
	})
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
