package flows

import (
	"context"

	"github.com/MrEthical07/goAuthz/permission"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authorize.Tokens != nil && s.deps.Authorize.Store != nil
}

func (s Service) Login(ctx context.Context, username, password string, remember bool) LoginResult {
	return RunLogin(ctx, username, password, remember, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, accessToken string) LogoutResult {
	return RunLogout(ctx, accessToken, s.deps.Logout)
}

func (s Service) Register(ctx context.Context, req RegisterRequest) RegisterResult {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) Authorize(ctx context.Context, accessToken string, policy permission.Policy) AuthorizeResult {
	return RunAuthorize(ctx, accessToken, policy, s.deps.Authorize)
}

func (s Service) SetActive(ctx context.Context, userID string, active bool) AccountResult {
	return RunSetActive(ctx, userID, active, s.deps.Account)
}

func (s Service) UpdateProfile(ctx context.Context, userID string, change ProfileChange) AccountResult {
	return RunUpdateProfile(ctx, userID, change, s.deps.Account)
}
