package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"exam-delivery-service/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AccountService registers users and checks their credentials. Passwords are
// only ever held as bcrypt hashes.
type AccountService struct {
	users UserRepository
	now   func() time.Time
	cost  int
}

func NewAccountService(users UserRepository) *AccountService {
	return &AccountService{users: users, now: time.Now, cost: bcrypt.DefaultCost}
}

// RegisterInput is the self-service registration form.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Age      *int   `json:"age,omitempty" validate:"omitempty,gte=1,lte=150"`
}

// Register creates an active student account.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return domain.User{}, err
	}
	return s.create(ctx, in, domain.RoleStudent)
}

// RegisterAdmin creates an administrator; used by seeding.
func (s *AccountService) RegisterAdmin(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return domain.User{}, err
	}
	return s.create(ctx, in, domain.RoleAdmin)
}

func (s *AccountService) create(ctx context.Context, in RegisterInput, role domain.Role) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return domain.User{}, err
	}
	return s.users.RegisterUser(ctx, domain.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Role:         role,
		RegisteredAt: s.now(),
		Age:          in.Age,
		Status:       domain.UserActive,
		PasswordHash: string(hash),
	})
}

// Authenticate checks an email/password pair. Inactive accounts are refused.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if user.Status == domain.UserInactive {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}
