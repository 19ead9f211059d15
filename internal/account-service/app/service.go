// Package app implements member accounts, newsletter subscriptions and plan
// confirmation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"

	"github.com/jcmexdev/gym-membership/internal/account-service/domain"
	"github.com/jcmexdev/gym-membership/internal/pkg/clock"
)

var tracer = otel.Tracer("github.com/jcmexdev/gym-membership/internal/account-service/app")

// Repository persists users and newsletter subscribers.
type Repository interface {
	// CreateUser inserts user and sets its ID. It returns domain.ErrUserExists
	// when the email is taken.
	CreateUser(ctx context.Context, user *domain.User) error
	// FindUserByEmail returns domain.ErrUserNotFound for unknown emails.
	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
	// AddSubscriber reports false when the email was already subscribed.
	AddSubscriber(ctx context.Context, sub domain.Subscriber) (bool, error)
}

type Service struct {
	repo     Repository
	clock    clock.Clock
	hashCost int
}

type ServiceOption func(*Service)

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) ServiceOption {
	return func(s *Service) {
		s.hashCost = cost
	}
}

func NewService(repo Repository, clk clock.Clock, opts ...ServiceOption) *Service {
	svc := &Service{
		repo:     repo,
		clock:    clk,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

func (s *Service) SignUp(ctx context.Context, in SignUpInput) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "accounts.SignUp")
	defer span.End()

	if in.Name == "" || in.Email == "" || in.Password == "" {
		return domain.User{}, domain.ErrMissingSignupFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.User{}, err
		}
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("sign up: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	slog.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "accounts.Login")
	defer span.End()

	if email == "" || password == "" {
		return domain.User{}, domain.ErrMissingCredentials
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, err
		}
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.InfoContext(ctx, "login rejected", "user_id", user.ID)
		return domain.User{}, domain.ErrIncorrectPassword
	}
	return user, nil
}

// Subscribe adds email to the newsletter list. created is false when the
// address was already on it.
func (s *Service) Subscribe(ctx context.Context, email string) (created bool, err error) {
	ctx, span := tracer.Start(ctx, "accounts.Subscribe")
	defer span.End()

	if email == "" {
		return false, domain.ErrEmailRequired
	}

	created, err = s.repo.AddSubscriber(ctx, domain.Subscriber{Email: email, CreatedAt: s.clock.Now()})
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("subscribe: %w", err)
	}
	span.SetAttributes(attribute.Bool("subscriber.created", created))
	return created, nil
}

// ConfirmPlan acknowledges a plan choice. Nothing is stored; payment runs
// through the order flow.
func (s *Service) ConfirmPlan(ctx context.Context, plan, paymentMethod string) (string, error) {
	if plan == "" || paymentMethod == "" {
		return "", domain.ErrMissingPlanOrMethod
	}
	msg := fmt.Sprintf("Successfully subscribed to %s plan using %s!", domain.PlanLabel(plan), paymentMethod)
	slog.InfoContext(ctx, "plan confirmed", "plan", plan, "payment_method", paymentMethod)
	return msg, nil
}
