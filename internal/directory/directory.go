package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/canhamzacode/tipjar/internal/cache"
	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/pkg/logger"
	"github.com/canhamzacode/tipjar/pkg/validation"
)

const cacheTTL = 30 * time.Minute

// Profile carries the identity attributes obtained during account linking.
type Profile struct {
	TwitterID       string
	Handle          string
	Name            string
	ProfileImageURL string
	Description     string
	AccessToken     string
	RefreshToken    string
	TokenExpiresAt  *time.Time
}

// Service is the user directory. It owns every read and write of User
// records so that handle normalization and the stub-merge rules live in one
// place.
type Service struct {
	repo   models.Repository
	cache  *cache.Redis
	logger *logger.Logger
}

// New creates a directory service. cache may be nil, lookups then always hit
// the repository.
func New(repo models.Repository, c *cache.Redis, log *logger.Logger) *Service {
	return &Service{repo: repo, cache: c, logger: log}
}

func cacheKey(handle string) string {
	return "user:handle:" + handle
}

// Resolve looks up a user by handle. It returns (nil, nil) when no record
// exists: absence is an outcome the callers branch on, not an error.
func (s *Service) Resolve(ctx context.Context, handle string) (*models.User, error) {
	handle = validation.SanitizeHandle(handle)
	if handle == "" {
		return nil, models.NewValidationError("handle is empty after sanitization")
	}

	if s.cache != nil {
		var cached models.User
		hit, err := s.cache.GetJSON(ctx, cacheKey(handle), &cached)
		if err != nil {
			s.logger.Warn("cache lookup failed: ", err)
		} else if hit {
			return &cached, nil
		}
	}

	user, err := s.repo.GetUserByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve handle %s: %s", handle, err)
	}
	if user == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey(handle), user, cacheTTL); err != nil {
			s.logger.Warn("cache store failed: ", err)
		}
	}
	return user, nil
}

// ByID fetches a user by internal id.
func (s *Service) ByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ByWallet fetches the user bound to a wallet address, (nil, nil) when none.
func (s *Service) ByWallet(ctx context.Context, address string) (*models.User, error) {
	return s.repo.GetUserByWallet(ctx, address)
}

// GetOrCreateByHandle resolves a handle, creating an unauthenticated stub
// record when none exists. The stub carries only the handle; authentication
// later merges into it.
func (s *Service) GetOrCreateByHandle(ctx context.Context, handle string) (*models.User, error) {
	user, err := s.Resolve(ctx, handle)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	stub := &models.User{TwitterHandle: validation.SanitizeHandle(handle)}
	if err := s.repo.CreateUser(ctx, stub); err != nil {
		return nil, fmt.Errorf("failed to create user stub for @%s: %s", handle, err)
	}
	s.logger.Info("created user stub for @", stub.TwitterHandle)
	return stub, nil
}

// LinkAccount completes authentication for a social identity. Matching is by
// twitter id first, then by handle, so a bot-created stub is merged rather
// than duplicated. The result always carries the fresh profile attributes
// and credentials.
func (s *Service) LinkAccount(ctx context.Context, p Profile) (*models.User, error) {
	handle := validation.SanitizeHandle(p.Handle)
	if handle == "" || p.TwitterID == "" {
		return nil, models.NewValidationError("account linking requires a twitter id and handle")
	}

	user, err := s.repo.GetUserByTwitterID(ctx, p.TwitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up twitter id %s: %s", p.TwitterID, err)
	}
	if user == nil {
		user, err = s.repo.GetUserByHandle(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("failed to look up handle %s: %s", handle, err)
		}
	}

	if user == nil {
		user = &models.User{}
		applyProfile(user, p, handle)
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user @%s: %s", handle, err)
		}
	} else {
		s.invalidate(ctx, user.TwitterHandle)
		applyProfile(user, p, handle)
		if err := s.repo.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user @%s: %s", handle, err)
		}
	}
	s.invalidate(ctx, handle)
	return user, nil
}

func applyProfile(user *models.User, p Profile, handle string) {
	user.TwitterID = p.TwitterID
	user.TwitterHandle = handle
	user.Name = p.Name
	user.ProfileImageURL = p.ProfileImageURL
	user.Description = p.Description
	user.AccessToken = p.AccessToken
	user.RefreshToken = p.RefreshToken
	user.TokenExpiresAt = p.TokenExpiresAt
}

// ConnectWallet binds a wallet address to the user. An address already bound
// to a different user is a ConflictError; rebinding the same address to the
// same user is a no-op.
func (s *Service) ConnectWallet(ctx context.Context, userID, address string, walletType models.WalletType) (*models.User, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, models.NewValidationError("wallet address is required")
	}
	if walletType != models.WalletTypeCustodial && walletType != models.WalletTypeNonCustodial {
		walletType = models.WalletTypeNonCustodial
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	holder, err := s.repo.GetUserByWallet(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to look up wallet %s: %s", address, err)
	}
	if holder != nil && holder.ID != user.ID {
		return nil, &models.ConflictError{Msg: fmt.Sprintf(
			"wallet %s is already connected to another account", address)}
	}

	user.WalletAddress = &address
	user.WalletType = walletType
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to connect wallet for user %s: %s", userID, err)
	}
	s.invalidate(ctx, user.TwitterHandle)
	return user, nil
}

func (s *Service) invalidate(ctx context.Context, handle string) {
	if s.cache == nil || handle == "" {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(handle)); err != nil {
		s.logger.Warn("cache invalidation failed: ", err)
	}
}
