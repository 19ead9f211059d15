package ports

import (
	"context"

	accountapp "github.com/jcmexdev/gym-membership/internal/account-service/app"
	accountdomain "github.com/jcmexdev/gym-membership/internal/account-service/domain"
	orderapp "github.com/jcmexdev/gym-membership/internal/order-service/app"
	orderdomain "github.com/jcmexdev/gym-membership/internal/order-service/domain"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in orderapp.CreateOrderInput) (orderapp.CreateOrderResult, error)
	VerifyPayment(ctx context.Context, in orderapp.VerifyPaymentInput) (orderapp.VerifyPaymentResult, error)
	ListOrders(ctx context.Context) []orderdomain.Order
	GetOrder(ctx context.Context, id string) (orderdomain.Order, error)
}

type AccountService interface {
	SignUp(ctx context.Context, in accountapp.SignUpInput) (accountdomain.User, error)
	Login(ctx context.Context, email, password string) (accountdomain.User, error)
	Subscribe(ctx context.Context, email string) (bool, error)
	ConfirmPlan(ctx context.Context, plan, paymentMethod string) (string, error)
}
