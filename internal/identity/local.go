package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var errAccountExists = errors.New("account already exists")

// Account is a registered login.
type Account struct {
	UID          string
	Email        string
	Name         string
	PasswordHash []byte
	// FederatedSubject is set once the account has signed in through a federated provider.
	FederatedSubject string
}

// AccountStore holds accounts shared by every session.
type AccountStore interface {
	ByEmail(ctx context.Context, email string) (Account, bool, error)
	// Insert fails with errAccountExists when the email is taken.
	Insert(ctx context.Context, a Account) error
	Update(ctx context.Context, a Account) error
}

// MemoryAccountStore is an in-memory AccountStore.
type MemoryAccountStore struct {
	byEmail map[string]Account
	mu      sync.RWMutex
}

// NewMemoryAccountStore creates an empty account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{byEmail: make(map[string]Account)}
}

func (s *MemoryAccountStore) ByEmail(_ context.Context, email string) (Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byEmail[normalizeEmail(email)]
	return a, ok, nil
}

func (s *MemoryAccountStore) Insert(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeEmail(a.Email)
	if _, ok := s.byEmail[key]; ok {
		return errAccountExists
	}
	s.byEmail[key] = a
	return nil
}

func (s *MemoryAccountStore) Update(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEmail[normalizeEmail(a.Email)] = a
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LocalAuth is a self-hosted identity service: bcrypt password accounts, federated
// sign-in through a FederatedVerifier and signed session tokens.
type LocalAuth struct {
	accounts          AccountStore
	tokens            *TokenIssuer
	federated         FederatedVerifier
	minPasswordLength int
}

// LocalAuthConfig configures a LocalAuth. Federated may be nil, in which case
// federated sign-in fails with CodeOperationNotAllowed.
type LocalAuthConfig struct {
	Accounts          AccountStore
	Tokens            *TokenIssuer
	Federated         FederatedVerifier
	MinPasswordLength int
}

// NewLocalAuth creates the shared identity service.
func NewLocalAuth(cfg LocalAuthConfig) (*LocalAuth, error) {
	if cfg.Accounts == nil {
		return nil, fmt.Errorf("account store is nil")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token issuer is nil")
	}
	if cfg.MinPasswordLength < 1 {
		cfg.MinPasswordLength = 6
	}
	return &LocalAuth{
		accounts:          cfg.Accounts,
		tokens:            cfg.Tokens,
		federated:         cfg.Federated,
		minPasswordLength: cfg.MinPasswordLength,
	}, nil
}

// NewClient returns a Provider bound to one browser session.
func (a *LocalAuth) NewClient() *LocalClient {
	return &LocalClient{auth: a, observers: make(map[int]func(*Identity))}
}

func (a *LocalAuth) register(ctx context.Context, email, password string) (*Identity, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, newError(CodeInvalidEmail, err)
	}
	if len(password) < a.minPasswordLength {
		return nil, newError(CodeWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	acct := Account{
		UID:          uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
	}
	if err := a.accounts.Insert(ctx, acct); err != nil {
		if errors.Is(err, errAccountExists) {
			return nil, newError(CodeEmailAlreadyInUse, nil)
		}
		return nil, fmt.Errorf("inserting account: %w", err)
	}
	return a.identityFor(acct)
}

func (a *LocalAuth) signIn(ctx context.Context, email, password string) (*Identity, error) {
	acct, ok, err := a.accounts.ByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	if !ok {
		return nil, newError(CodeUserNotFound, nil)
	}
	if len(acct.PasswordHash) == 0 {
		return nil, newError(CodeInvalidCredential, errors.New("account has no password"))
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return nil, newError(CodeWrongPassword, nil)
	}
	return a.identityFor(acct)
}

func (a *LocalAuth) signInFederated(ctx context.Context, credential string) (*Identity, error) {
	if a.federated == nil {
		return nil, newError(CodeOperationNotAllowed, errors.New("federated sign-in is not configured"))
	}
	claims, err := a.federated.Verify(ctx, credential)
	if err != nil {
		return nil, newError(CodeInvalidCredential, err)
	}

	acct, ok, err := a.accounts.ByEmail(ctx, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	switch {
	case !ok:
		acct = Account{
			UID:              uuid.NewString(),
			Email:            normalizeEmail(claims.Email),
			Name:             claims.Name,
			FederatedSubject: claims.Subject,
		}
		err := a.accounts.Insert(ctx, acct)
		if errors.Is(err, errAccountExists) {
			// Lost a race with a concurrent first sign-in for the same email.
			if acct, _, err = a.accounts.ByEmail(ctx, claims.Email); err != nil {
				return nil, fmt.Errorf("looking up account: %w", err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("inserting account: %w", err)
		}
	case acct.FederatedSubject != claims.Subject:
		// Link the federated login to the existing password account.
		acct.FederatedSubject = claims.Subject
		if acct.Name == "" {
			acct.Name = claims.Name
		}
		if err := a.accounts.Update(ctx, acct); err != nil {
			return nil, fmt.Errorf("linking account: %w", err)
		}
	}
	return a.identityFor(acct)
}

func (a *LocalAuth) identityFor(acct Account) (*Identity, error) {
	id := Identity{UID: acct.UID, Email: acct.Email, Name: acct.Name}
	token, err := a.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	id.Token = token
	return &id, nil
}

// LocalClient is the per-session Provider of a LocalAuth.
type LocalClient struct {
	auth      *LocalAuth
	current   *Identity
	observers map[int]func(*Identity)
	nextID    int
	mu        sync.Mutex
}

func (c *LocalClient) Observe(fn func(*Identity)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	current := c.current
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *LocalClient) SignInFederated(ctx context.Context, credential string) (*Identity, error) {
	return c.apply(c.auth.signInFederated(ctx, credential))
}

func (c *LocalClient) SignInWithPassword(ctx context.Context, email, password string) (*Identity, error) {
	return c.apply(c.auth.signIn(ctx, email, password))
}

func (c *LocalClient) RegisterWithPassword(ctx context.Context, email, password string) (*Identity, error) {
	return c.apply(c.auth.register(ctx, email, password))
}

// Resume restores the identity carried by a token from an earlier sign-in.
func (c *LocalClient) Resume(_ context.Context, token string) (*Identity, error) {
	id, err := c.auth.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return c.apply(&id, nil)
}

func (c *LocalClient) SignOut(_ context.Context) error {
	c.set(nil)
	return nil
}

func (c *LocalClient) apply(id *Identity, err error) (*Identity, error) {
	if err != nil {
		return nil, err
	}
	c.set(id)
	return id, nil
}

func (c *LocalClient) set(id *Identity) {
	c.mu.Lock()
	c.current = id
	fns := make([]func(*Identity), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}
