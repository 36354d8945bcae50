// Package profiles manages accounts: signup, login, Google sign-in and
// profile edits.
package profiles

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/utils"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/validation"
)

const table = "profiles"

type Service struct {
	DB     *gorm.DB
	Broker realtime.Broker
}

func New(db *gorm.DB, broker realtime.Broker) *Service {
	return &Service{DB: db, Broker: broker}
}

type SignupInput struct {
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
	FullName             string `json:"full_name" validate:"required,max=120"`
	Username             string `json:"username" validate:"required,username"`
	Role                 string `json:"role" validate:"required,oneof=buyer seller"`
	AcceptTerms          bool   `json:"accept_terms" validate:"required"`
}

func (in *SignupInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
}

// Validate normalizes in and checks every signup rule that needs no
// database lookup.
func (in *SignupInput) Validate() error {
	in.normalize()
	return validation.Struct(in)
}

// Signup validates in and creates the profile. Email and username clashes
// come back as field errors.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.Profile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	taken := apperr.FieldErrors{}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Profile{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
		return nil, apperr.Internal("could not check email", err)
	}
	if n > 0 {
		taken.Add("email", "is already registered")
	}
	if err := s.DB.WithContext(ctx).Model(&models.Profile{}).Where("username = ?", in.Username).Count(&n).Error; err != nil {
		return nil, apperr.Internal("could not check username", err)
	}
	if n > 0 {
		taken.Add("username", "is already taken")
	}
	if len(taken) > 0 {
		return nil, apperr.Validation(taken)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("could not hash password", err)
	}

	p := &models.Profile{
		Email:    in.Email,
		Password: hash,
		Username: in.Username,
		FullName: in.FullName,
		Role:     models.Role(in.Role),
		IsActive: true,
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return nil, apperr.Field("email", "is already registered")
		}
		return nil, apperr.Internal("could not create profile", err)
	}

	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventInsert, p.Public(), nil))
	return p, nil
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*models.Profile, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var p models.Profile
	if err := s.DB.WithContext(ctx).Where("email = ?", in.Email).First(&p).Error; err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, apperr.Internal("could not load profile", err)
	}
	if !utils.CheckPassword(p.Password, in.Password) {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	if !p.IsActive {
		return nil, apperr.Forbidden("account is inactive")
	}
	return &p, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Profile", err)
		}
		return nil, apperr.Internal("could not load profile", err)
	}
	return &p, nil
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var p models.Profile
	err := s.DB.WithContext(ctx).
		Where("username = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(username)), true).
		First(&p).Error
	if err != nil {
		if services.IsNotFound(err) {
			return nil, apperr.NotFound("Profile", err)
		}
		return nil, apperr.Internal("could not load profile", err)
	}
	return &p, nil
}

// UpdateInput holds optional edits; nil fields are left alone.
type UpdateInput struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	Bio      *string `json:"bio" validate:"omitempty,max=2000"`
	Phone    *string `json:"phone" validate:"omitempty,min=8,max=20"`
	Role     *string `json:"role" validate:"omitempty,oneof=buyer seller"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Profile, error) {
	if in.FullName != nil {
		v := strings.TrimSpace(*in.FullName)
		in.FullName = &v
	}
	if in.Phone != nil {
		v := NormalizePhone(*in.Phone)
		in.Phone = &v
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	old := p.Public()

	updates := map[string]any{}
	if in.FullName != nil {
		updates["full_name"] = *in.FullName
	}
	if in.Bio != nil {
		updates["bio"] = strings.TrimSpace(*in.Bio)
	}
	if in.Phone != nil {
		updates["phone"] = *in.Phone
	}
	if in.Role != nil {
		updates["role"] = *in.Role
	}
	if len(updates) == 0 {
		return p, nil
	}

	if err := s.DB.WithContext(ctx).Model(p).Updates(updates).Error; err != nil {
		return nil, apperr.Internal("could not update profile", err)
	}
	p, err = s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventUpdate, p.Public(), old))
	return p, nil
}

// SetAvatar stores the public URL of an uploaded avatar.
func (s *Service) SetAvatar(ctx context.Context, id uuid.UUID, url string) (*models.Profile, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	old := p.Public()
	if err := s.DB.WithContext(ctx).Model(p).Update("avatar_url", url).Error; err != nil {
		return nil, apperr.Internal("could not update avatar", err)
	}
	p.AvatarURL = url
	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventUpdate, p.Public(), old))
	return p, nil
}

// GoogleUser is what the OAuth callback learned about the account.
type GoogleUser struct {
	Email   string
	Name    string
	Picture string
}

// UpsertGoogle returns the profile for g.Email, creating a buyer profile
// with an unusable password on first sign-in.
func (s *Service) UpsertGoogle(ctx context.Context, g GoogleUser) (*models.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(g.Email))
	if email == "" {
		return nil, apperr.BadRequest("google account has no email", nil)
	}

	var p models.Profile
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&p).Error
	if err == nil {
		if !p.IsActive {
			return nil, apperr.Forbidden("account is inactive")
		}
		if p.AvatarURL == "" && g.Picture != "" {
			_ = s.DB.WithContext(ctx).Model(&p).Update("avatar_url", g.Picture).Error
		}
		return &p, nil
	}
	if !services.IsNotFound(err) {
		return nil, apperr.Internal("could not load profile", err)
	}

	hash, err := utils.HashPassword(uuid.NewString())
	if err != nil {
		return nil, apperr.Internal("could not hash password", err)
	}
	name := strings.TrimSpace(g.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	p = models.Profile{
		Email:     email,
		Password:  hash,
		Username:  s.freeUsername(ctx, email),
		FullName:  name,
		Role:      models.RoleBuyer,
		AvatarURL: g.Picture,
		IsActive:  true,
	}
	if err := s.DB.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, apperr.Internal("could not create profile", err)
	}
	realtime.Emit(ctx, s.Broker, realtime.NewChange(table, realtime.EventInsert, p.Public(), nil))
	return &p, nil
}

// freeUsername derives an unused username from the email's local part.
func (s *Service) freeUsername(ctx context.Context, email string) string {
	base := UsernameFrom(email)
	candidate := base
	for i := 0; i < 5; i++ {
		var n int64
		s.DB.WithContext(ctx).Model(&models.Profile{}).Where("username = ?", candidate).Count(&n)
		if n == 0 {
			return candidate
		}
		candidate = base + "_" + uuid.NewString()[:4]
	}
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// UsernameFrom keeps the characters of email's local part that usernames
// allow and pads it to the minimum length.
func UsernameFrom(email string) string {
	local := strings.ToLower(strings.SplitN(email, "@", 2)[0])
	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 24 {
		out = out[:24]
	}
	for len(out) < 3 {
		out += "_"
	}
	return out
}

func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	return phone
}
