package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/product"
)

// Service implements cart operations for customers.
type Service struct {
	repo     Repository
	products Products
}

// NewService creates a cart Service.
func NewService(repo Repository, products Products) *Service {
	return &Service{repo: repo, products: products}
}

// AddItem puts qty units of a product into the customer's cart. An existing
// line is merged; created reports whether a new line was inserted.
func (s *Service) AddItem(ctx context.Context, customerID, productID int64, qty int) (it *Item, created bool, err error) {
	if qty < 1 {
		return nil, false, ErrInvalidQuantity
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, false, err
	}
	if !p.IsAvailable {
		return nil, false, product.ErrNotAvailable
	}
	if p.AvailableQuantity < qty {
		return nil, false, &StockError{Available: p.AvailableQuantity}
	}

	c, err := s.repo.Ensure(ctx, customerID)
	if err != nil {
		return nil, false, errors.Wrap(err, "ensure cart")
	}

	existing, err := s.repo.FindItem(ctx, c.ID, productID)
	switch {
	case err == nil:
		total := existing.Quantity + qty
		if total > p.AvailableQuantity {
			return nil, false, &StockError{Available: p.AvailableQuantity, Merge: true}
		}
		if err := s.repo.SetQuantity(ctx, existing.ID, total); err != nil {
			return nil, false, errors.Wrap(err, "merge cart item")
		}
		existing.Quantity = total
		return existing, false, nil
	case !errors.Is(err, ErrItemNotFound):
		return nil, false, errors.Wrap(err, "find cart item")
	}

	it = &Item{CartID: c.ID, CustomerID: customerID, ProductID: productID, Quantity: qty}
	if err := s.repo.AddItem(ctx, it); err != nil {
		return nil, false, errors.Wrap(err, "add cart item")
	}
	return it, true, nil
}

// Get returns the customer's cart view. A customer without a cart gets an
// empty view with a nil Cart.
func (s *Service) Get(ctx context.Context, customerID int64) (*View, error) {
	c, err := s.repo.GetByCustomer(ctx, customerID)
	if errors.Is(err, ErrNotFound) {
		return &View{TotalPrice: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	lines, err := s.Lines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	v := &View{Cart: c, Lines: lines, TotalPrice: decimal.Zero}
	for _, l := range lines {
		v.TotalItems += l.Quantity
		v.TotalPrice = v.TotalPrice.Add(l.Subtotal())
	}
	v.TotalPrice = v.TotalPrice.Round(2)
	return v, nil
}

// Lines joins the cart's items with their products. Items whose product was
// deleted are returned with a zero Product.
func (s *Service) Lines(ctx context.Context, cartID int64) ([]Line, error) {
	items, err := s.repo.Items(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	lines := make([]Line, len(items))
	for i, it := range items {
		lines[i] = Line{Item: it, Product: byID[it.ProductID]}
	}
	return lines, nil
}

func (s *Service) ownedItem(ctx context.Context, customerID, itemID int64) (*Item, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.CustomerID != customerID {
		return nil, ErrForbidden
	}
	return it, nil
}

// UpdateItem sets the quantity of an owned cart line.
func (s *Service) UpdateItem(ctx context.Context, customerID, itemID int64, qty int) (*Item, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	it, err := s.ownedItem(ctx, customerID, itemID)
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, it.ProductID)
	if err != nil {
		return nil, err
	}
	if qty > p.AvailableQuantity {
		return nil, &StockError{Available: p.AvailableQuantity}
	}
	if err := s.repo.SetQuantity(ctx, it.ID, qty); err != nil {
		return nil, errors.Wrap(err, "update cart item")
	}
	it.Quantity = qty
	return it, nil
}

// DeleteItem removes an owned cart line.
func (s *Service) DeleteItem(ctx context.Context, customerID, itemID int64) error {
	it, err := s.ownedItem(ctx, customerID, itemID)
	if err != nil {
		return err
	}
	return s.repo.DeleteItem(ctx, it.ID)
}

// Clear empties the customer's cart.
func (s *Service) Clear(ctx context.Context, customerID int64) error {
	c, err := s.repo.GetByCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	return s.repo.Clear(ctx, c.ID)
}
