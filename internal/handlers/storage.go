package handlers

import (
	"context"

	"buildmarket/models"
)

// StorageInterface is everything the HTTP layer needs from storage.
// *db.Storage implements it; tests substitute a mock.
type StorageInterface interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id int) (*models.Project, error)
	PublishProject(ctx context.Context, id, ownerID int) error
	GetOpenProjects(ctx context.Context, limit, offset int) ([]models.Project, error)
	GetUserProjects(ctx context.Context, ownerID, limit, offset int) ([]models.Project, error)
	AddEstimationItem(ctx context.Context, projectID int, item *models.EstimationItem) error
	GetEstimationItems(ctx context.Context, projectID int) ([]models.EstimationItem, error)

	SubmitBid(ctx context.Context, b *models.Bid, allowRebid bool) error
	GetBid(ctx context.Context, id int) (*models.Bid, error)
	GetBidsForProject(ctx context.Context, projectID int) ([]models.Bid, error)
	AcceptBid(ctx context.Context, bidID int, finalAmount int64) (*models.Bid, error)
	WithdrawBid(ctx context.Context, bidID, sellerID int) error

	GetProduct(ctx context.Context, id int) (*models.Product, error)
	GetProducts(ctx context.Context, limit, offset int) ([]models.Product, error)
	GetOrCreateActiveCart(ctx context.Context, userID int) (*models.Cart, error)
	GetCartItems(ctx context.Context, cartID int) ([]models.CartItem, error)
	AddCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, cartID, itemID, quantity int) error
	RemoveCartItem(ctx context.Context, cartID, itemID int) error

	PlaceOrder(ctx context.Context, cartID, userID int, paymentRef string) (*models.Order, error)
	GetOrder(ctx context.Context, id int) (*models.Order, error)
	GetUserOrders(ctx context.Context, userID, limit, offset int, sortField, sortOrder string) ([]models.Order, error)

	GetSplitsForOrder(ctx context.Context, orderID int) ([]models.SplitCalculation, error)
}
