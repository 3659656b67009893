package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/goAuthz/internal/rate"
	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/password"
	"github.com/MrEthical07/goAuthz/permission"
	"github.com/MrEthical07/goAuthz/revocation"
	"github.com/MrEthical07/goAuthz/store"
	"github.com/MrEthical07/goAuthz/store/memory"
)

type fixture struct {
	mr      *miniredis.Miniredis
	store   *memory.Store
	tokens  *jwt.Manager
	revs    *revocation.Registry
	hasher  *password.Hasher
	limiter *rate.Limiter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	tokens, err := jwt.NewManager(jwt.Config{PrivateKey: []byte("flows-test-secret")})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	revs, err := revocation.New(rdb, revocation.Config{DefaultTTL: 30 * time.Minute})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	hasher, err := password.NewHasher(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	return &fixture{
		mr:      mr,
		store:   memory.New(),
		tokens:  tokens,
		revs:    revs,
		hasher:  hasher,
		limiter: rate.New(rdb, rate.Config{MaxLoginAttempts: 3, LoginCooldown: time.Minute}),
	}
}

// slowHasher calls during before hashing so a test can mutate the user while
// the digest is being computed.
type slowHasher struct {
	*password.Hasher
	during func()
}

func (h slowHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if h.during != nil {
		h.during()
	}
	return h.Hasher.Hash(ctx, plaintext)
}

func (f *fixture) loginDeps() LoginDeps {
	return LoginDeps{
		Store:          f.store,
		Hasher:         f.hasher,
		Tokens:         f.tokens,
		AccessTTL:      30 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		UpgradeOnLogin: true,
	}
}

func (f *fixture) refreshDeps() RefreshDeps {
	return RefreshDeps{
		Store:        f.store,
		Tokens:       f.tokens,
		Revocations:  f.revs,
		AccessTTL:    30 * time.Minute,
		RefreshTTL:   7 * 24 * time.Hour,
		RevokeRotate: true,
	}
}

func (f *fixture) authorizeDeps() AuthorizeDeps {
	return AuthorizeDeps{Store: f.store, Tokens: f.tokens, Revocations: f.revs}
}

func (f *fixture) addUser(t *testing.T, username, pw string, active, superuser bool) *store.User {
	t.Helper()

	digest, err := f.hasher.Hash(context.Background(), pw)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := f.store.CreateUser(context.Background(), store.NewUser{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: digest,
		IsActive:     active,
		IsSuperuser:  superuser,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) grant(t *testing.T, userID, roleCode string, perms ...string) {
	t.Helper()
	ctx := context.Background()

	role, err := f.store.FindRoleByCode(ctx, roleCode)
	if errors.Is(err, store.ErrNotFound) {
		role, err = f.store.CreateRole(ctx, store.Role{Code: roleCode, Name: roleCode})
	}
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	for _, code := range perms {
		p, err := f.store.FindPermissionByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			p, err = f.store.CreatePermission(ctx, store.Permission{Code: code, Name: code})
		}
		if err != nil {
			t.Fatalf("permission: %v", err)
		}
		if err := f.store.AssignPermissionToRole(ctx, role.ID, p.ID); err != nil {
			t.Fatalf("assign permission: %v", err)
		}
	}
	if err := f.store.AssignRoleToUser(ctx, userID, role.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}
}

func TestLoginIssuesTokens(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "secret1", true, false)

	res := RunLogin(context.Background(), "alice", "secret1", false, f.loginDeps())
	if res.Failure != LoginFailureNone {
		t.Fatalf("expected success, got %v (%v)", res.Failure, res.Err)
	}
	if res.AccessToken == "" || res.RefreshToken != "" {
		t.Fatalf("expected access only, got access=%q refresh=%q", res.AccessToken, res.RefreshToken)
	}

	res = RunLogin(context.Background(), "alice", "secret1", true, f.loginDeps())
	if res.RefreshToken == "" {
		t.Fatalf("expected refresh token with remember")
	}
	claims, err := f.tokens.Verify(res.RefreshToken, jwt.KindRefresh)
	if err != nil || claims.Subject != "alice" {
		t.Fatalf("expected refresh for alice, got %+v, %v", claims, err)
	}
}

func TestLoginUnknownAndWrongPasswordIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "secret1", true, false)

	unknown := RunLogin(context.Background(), "nobody", "secret1", false, f.loginDeps())
	wrong := RunLogin(context.Background(), "alice", "nope", false, f.loginDeps())

	if unknown.Failure != LoginFailureInvalidCredentials || wrong.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("expected invalid credentials for both, got %v and %v", unknown.Failure, wrong.Failure)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "carol", "secret1", false, false)

	res := RunLogin(context.Background(), "carol", "secret1", false, f.loginDeps())
	if res.Failure != LoginFailureDisabled {
		t.Fatalf("expected disabled, got %v", res.Failure)
	}
	if res.AccessToken != "" {
		t.Fatalf("expected no token for disabled user")
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "secret1", true, false)
	deps := f.loginDeps()
	deps.Limiter = f.limiter

	for i := 0; i < 3; i++ {
		res := RunLogin(context.Background(), "alice", "bad", false, deps)
		if res.Failure != LoginFailureInvalidCredentials {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, res.Failure)
		}
	}
	res := RunLogin(context.Background(), "alice", "secret1", false, deps)
	if res.Failure != LoginFailureRateLimited {
		t.Fatalf("expected rate limited, got %v", res.Failure)
	}
}

func TestLoginUpgradesLegacyDigest(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "legacy", "secret1", true, false)

	legacy, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	digest := string(legacy)
	if _, err := f.store.UpdateUser(context.Background(), u.ID, store.UserUpdate{PasswordHash: &digest}); err != nil {
		t.Fatalf("update: %v", err)
	}

	res := RunLogin(context.Background(), "legacy", "secret1", false, f.loginDeps())
	if res.Failure != LoginFailureNone || !res.Rehashed {
		t.Fatalf("expected rehash on login, got %v rehashed=%v", res.Failure, res.Rehashed)
	}
	stored, _ := f.store.FindUserByUsername(context.Background(), "legacy")
	if needs, _ := f.hasher.NeedsUpgrade(stored.PasswordHash); needs {
		t.Fatalf("expected argon2id digest after upgrade")
	}
}

func TestLoginRehashKeepsConcurrentDeactivation(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "legacy", "secret1", true, false)

	legacy, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	digest := string(legacy)
	if _, err := f.store.UpdateUser(context.Background(), u.ID, store.UserUpdate{PasswordHash: &digest}); err != nil {
		t.Fatalf("update: %v", err)
	}

	accountDeps := AccountDeps{Store: f.store, Hasher: f.hasher}
	deps := f.loginDeps()
	deps.Hasher = slowHasher{Hasher: f.hasher, during: func() {
		if res := RunSetActive(context.Background(), u.ID, false, accountDeps); !res.Changed {
			t.Errorf("expected deactivation during rehash, got %+v", res)
		}
	}}

	res := RunLogin(context.Background(), "legacy", "secret1", false, deps)
	if res.Failure != LoginFailureNone || !res.Rehashed {
		t.Fatalf("expected login with rehash, got %v rehashed=%v", res.Failure, res.Rehashed)
	}
	stored, _ := f.store.FindUserByID(context.Background(), u.ID)
	if stored.IsActive {
		t.Fatalf("expected deactivation to survive the digest upgrade")
	}
	if needs, _ := f.hasher.NeedsUpgrade(stored.PasswordHash); needs {
		t.Fatalf("expected upgraded digest, got %q", stored.PasswordHash)
	}
}

func TestLoginTrimsUsername(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "secret1", true, false)

	res := RunLogin(context.Background(), "  alice\t", "secret1", false, f.loginDeps())
	if res.Failure != LoginFailureNone {
		t.Fatalf("expected success for padded username, got %v (%v)", res.Failure, res.Err)
	}
	if res.User == nil || res.User.Username != "alice" {
		t.Fatalf("expected alice, got %+v", res.User)
	}

	if res := RunLogin(context.Background(), "   ", "secret1", false, f.loginDeps()); res.Reason != "empty_credentials" {
		t.Fatalf("expected blank username to count as empty, got %q", res.Reason)
	}
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "secret1", true, false)
	login := RunLogin(context.Background(), "alice", "secret1", true, f.loginDeps())

	first := RunRefresh(context.Background(), login.RefreshToken, f.refreshDeps())
	if first.Failure != RefreshFailureNone {
		t.Fatalf("expected refresh success, got %v (%v)", first.Failure, first.Err)
	}
	if first.RefreshToken == "" || first.RefreshToken == login.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}

	again := RunRefresh(context.Background(), login.RefreshToken, f.refreshDeps())
	if again.Failure != RefreshFailureRevoked {
		t.Fatalf("expected revoked on reuse, got %v", again.Failure)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "secret1", true, false)
	login := RunLogin(context.Background(), "alice", "secret1", true, f.loginDeps())

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := RunRefresh(context.Background(), login.RefreshToken, f.refreshDeps())
			if res.Failure == RefreshFailureNone {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one successful refresh, got %d", success)
	}
}

func TestRefreshRejectsAccessTokenAndInactiveUser(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "secret1", true, false)
	login := RunLogin(context.Background(), "alice", "secret1", true, f.loginDeps())

	if res := RunRefresh(context.Background(), login.AccessToken, f.refreshDeps()); res.Failure != RefreshFailureInvalidToken {
		t.Fatalf("expected invalid token for access token, got %v", res.Failure)
	}

	inactive := false
	_, _ = f.store.UpdateUser(context.Background(), u.ID, store.UserUpdate{IsActive: &inactive})
	if res := RunRefresh(context.Background(), login.RefreshToken, f.refreshDeps()); res.Failure != RefreshFailureDisabled {
		t.Fatalf("expected disabled, got %v", res.Failure)
	}
}

func TestRefreshStoreDownFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "secret1", true, false)
	login := RunLogin(context.Background(), "alice", "secret1", true, f.loginDeps())
	f.mr.Close()

	res := RunRefresh(context.Background(), login.RefreshToken, f.refreshDeps())
	if res.Failure != RefreshFailureRevoked {
		t.Fatalf("expected revoked while store is down, got %v", res.Failure)
	}
	if !errors.Is(res.Err, revocation.ErrRedisUnavailable) {
		t.Fatalf("expected lookup error to be carried, got %v", res.Err)
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatalf("expected no tokens while store is down")
	}
}

func TestLogoutRevokesAndExpiredIsNoop(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "secret1", true, false)
	login := RunLogin(context.Background(), "alice", "secret1", false, f.loginDeps())

	res := RunLogout(context.Background(), login.AccessToken, LogoutDeps{Tokens: f.tokens, Revocations: f.revs})
	if res.Failure != LogoutFailureNone || res.Subject != "alice" {
		t.Fatalf("expected logout success, got %+v", res)
	}
	if revoked, _ := f.revs.IsRevoked(context.Background(), login.AccessToken); !revoked {
		t.Fatalf("expected token to be revoked")
	}

	expired, err := jwt.NewManager(jwt.Config{
		PrivateKey: []byte("flows-test-secret"),
		Now:        func() time.Time { return time.Now().Add(-time.Hour) },
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	old, _, _ := expired.Issue("alice", jwt.KindAccess, time.Minute)
	res = RunLogout(context.Background(), old, LogoutDeps{Tokens: f.tokens, Revocations: f.revs})
	if res.Failure != LogoutFailureNone || !res.AlreadyExpired {
		t.Fatalf("expected expired logout to be a no-op, got %+v", res)
	}

	res = RunLogout(context.Background(), "garbage", LogoutDeps{Tokens: f.tokens, Revocations: f.revs})
	if res.Failure != LogoutFailureUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", res.Failure)
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	deps := RegisterDeps{Store: f.store, Hasher: f.hasher, MinPasswordLength: 6}

	res := RunRegister(context.Background(), RegisterRequest{Username: "alice", Email: "Alice@Example.com", Password: "secret1"}, deps)
	if res.Failure != RegisterFailureNone {
		t.Fatalf("expected success, got %v (%v)", res.Failure, res.Err)
	}
	if !res.User.IsActive || res.User.IsSuperuser || res.User.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", res.User)
	}

	cases := []struct {
		name string
		req  RegisterRequest
		want RegisterFailureKind
	}{
		{"duplicate username", RegisterRequest{Username: "alice", Email: "x@example.com", Password: "secret1"}, RegisterFailureUsernameTaken},
		{"duplicate email", RegisterRequest{Username: "bob", Email: "alice@example.com", Password: "secret1"}, RegisterFailureEmailTaken},
		{"empty username", RegisterRequest{Email: "c@example.com", Password: "secret1"}, RegisterFailureInvalidInput},
		{"bad email", RegisterRequest{Username: "c", Email: "not-an-email", Password: "secret1"}, RegisterFailureInvalidInput},
		{"short password", RegisterRequest{Username: "c", Email: "c@example.com", Password: "12345"}, RegisterFailureInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RunRegister(context.Background(), tc.req, deps); got.Failure != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got.Failure)
			}
		})
	}
}

func TestAuthorizeDecisions(t *testing.T) {
	f := newFixture(t)
	bob := f.addUser(t, "bob", "secret1", true, false)
	f.grant(t, bob.ID, "writer", "a", "b")
	f.addUser(t, "root", "secret1", true, true)

	bobToken, _, _ := f.tokens.Issue("bob", jwt.KindAccess, time.Minute)
	rootToken, _, _ := f.tokens.Issue("root", jwt.KindAccess, time.Minute)

	cases := []struct {
		name   string
		token  string
		policy permission.Policy
		want   AuthorizeFailureKind
	}{
		{"any overlap", bobToken, permission.Any("b", "c"), AuthorizeFailureNone},
		{"any disjoint", bobToken, permission.Any("c", "d"), AuthorizeFailureForbidden},
		{"all partial", bobToken, permission.All("a", "c"), AuthorizeFailureForbidden},
		{"all held", bobToken, permission.All("a", "b"), AuthorizeFailureNone},
		{"empty requirement", bobToken, permission.Authenticated(), AuthorizeFailureNone},
		{"role required", bobToken, permission.Authenticated().WithRoles("admin"), AuthorizeFailureForbidden},
		{"role held", bobToken, permission.Any("a").WithRoles("writer"), AuthorizeFailureNone},
		{"superuser", rootToken, permission.All("x", "y"), AuthorizeFailureNone},
		{"garbage", "x.y.z", permission.Authenticated(), AuthorizeFailureInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunAuthorize(context.Background(), tc.token, tc.policy, f.authorizeDeps())
			if res.Failure != tc.want {
				t.Fatalf("expected %v, got %v (%v)", tc.want, res.Failure, res.Err)
			}
		})
	}

	res := RunAuthorize(context.Background(), bobToken, permission.Authenticated(), f.authorizeDeps())
	if len(res.Permissions) != 2 || res.Permissions[0] != "a" || res.Permissions[1] != "b" {
		t.Fatalf("expected sorted [a b], got %v", res.Permissions)
	}
	res = RunAuthorize(context.Background(), rootToken, permission.Authenticated(), f.authorizeDeps())
	if !res.Superuser {
		t.Fatalf("expected superuser flag")
	}
}

func TestAuthorizeRevokedUnknownAndDisabled(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "secret1", true, false)
	token, _, _ := f.tokens.Issue("alice", jwt.KindAccess, time.Minute)
	ghost, _, _ := f.tokens.Issue("ghost", jwt.KindAccess, time.Minute)

	if res := RunAuthorize(context.Background(), ghost, permission.Authenticated(), f.authorizeDeps()); res.Failure != AuthorizeFailureUnknownSubject {
		t.Fatalf("expected unknown subject, got %v", res.Failure)
	}

	inactive := false
	_, _ = f.store.UpdateUser(context.Background(), u.ID, store.UserUpdate{IsActive: &inactive})
	if res := RunAuthorize(context.Background(), token, permission.Authenticated(), f.authorizeDeps()); res.Failure != AuthorizeFailureDisabled {
		t.Fatalf("expected disabled, got %v", res.Failure)
	}

	_ = f.revs.Revoke(context.Background(), token, time.Minute)
	if res := RunAuthorize(context.Background(), token, permission.Authenticated(), f.authorizeDeps()); res.Failure != AuthorizeFailureRevoked {
		t.Fatalf("expected revoked, got %v", res.Failure)
	}
}

func TestAuthorizeUsesCache(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "secret1", true, false)
	f.grant(t, u.ID, "reader", "read")
	token, _, _ := f.tokens.Issue("alice", jwt.KindAccess, time.Minute)

	deps := f.authorizeDeps()
	deps.Cache = permission.NewCache(16, time.Minute)

	first := RunAuthorize(context.Background(), token, permission.Any("read"), deps)
	second := RunAuthorize(context.Background(), token, permission.Any("read"), deps)
	if first.CacheHit || !second.CacheHit {
		t.Fatalf("expected miss then hit, got %v then %v", first.CacheHit, second.CacheHit)
	}
}

func TestAccountStatusAndProfile(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "secret1", true, false)
	f.addUser(t, "bob", "secret1", true, false)
	deps := AccountDeps{Store: f.store, Hasher: f.hasher, MinPasswordLength: 6}

	res := RunSetActive(context.Background(), u.ID, false, deps)
	if res.Failure != AccountFailureNone || !res.Changed || res.User.IsActive {
		t.Fatalf("expected deactivation, got %+v", res)
	}
	if res := RunSetActive(context.Background(), u.ID, false, deps); res.Changed {
		t.Fatalf("expected idempotent deactivation")
	}
	if res := RunSetActive(context.Background(), "missing", true, deps); res.Failure != AccountFailureNotFound {
		t.Fatalf("expected not found, got %v", res.Failure)
	}

	taken := "bob@example.com"
	if res := RunUpdateProfile(context.Background(), u.ID, ProfileChange{Email: &taken}, deps); res.Failure != AccountFailureEmailTaken {
		t.Fatalf("expected email taken, got %v", res.Failure)
	}

	name, pw := "Alice A.", "newsecret"
	res = RunUpdateProfile(context.Background(), u.ID, ProfileChange{FullName: &name, Password: &pw}, deps)
	if res.Failure != AccountFailureNone || res.User.FullName != name {
		t.Fatalf("expected profile update, got %+v", res)
	}
	if ok, _ := f.hasher.Verify(context.Background(), pw, res.User.PasswordHash); !ok {
		t.Fatalf("expected new password to verify")
	}
}

func TestUpdateProfileKeepsConcurrentDeactivation(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "secret1", true, false)

	deps := AccountDeps{Store: f.store, MinPasswordLength: 6}
	deps.Hasher = slowHasher{Hasher: f.hasher, during: func() {
		if res := RunSetActive(context.Background(), u.ID, false, AccountDeps{Store: f.store}); !res.Changed {
			t.Errorf("expected deactivation during hash, got %+v", res)
		}
	}}

	name, pw := "Alice A.", "newsecret"
	res := RunUpdateProfile(context.Background(), u.ID, ProfileChange{FullName: &name, Password: &pw}, deps)
	if res.Failure != AccountFailureNone || !res.Changed {
		t.Fatalf("expected profile update, got %+v", res)
	}
	if res.User.IsActive {
		t.Fatalf("expected returned user to reflect deactivation")
	}

	stored, _ := f.store.FindUserByID(context.Background(), u.ID)
	if stored.IsActive {
		t.Fatalf("expected deactivation to survive the profile update")
	}
	if stored.FullName != name {
		t.Fatalf("expected full name %q, got %q", name, stored.FullName)
	}
	if ok, _ := f.hasher.Verify(context.Background(), pw, stored.PasswordHash); !ok {
		t.Fatalf("expected new password to verify")
	}
}
