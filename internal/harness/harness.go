package harness

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerunit/internal/inspect"
	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/ledger"
	"github.com/roach88/ledgerunit/internal/registry"
	"github.com/roach88/ledgerunit/internal/store"
)

// TB is the part of testing.TB the harness uses. *testing.T satisfies it;
// AbortTB adapts it for non-test callers.
type TB interface {
	require.TestingT
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}

// Ledger is the execution backend the harness drives. *ledger.Ledger
// implements it.
type Ledger interface {
	inspect.StateReader
	PublishPackage(ctx context.Context, code []byte) (ir.Address, error)
	CreateAccount(ctx context.Context) (ledger.KeyPair, ir.Address, error)
	NextNonce(ctx context.Context, key ledger.PublicKey) (uint64, error)
	Execute(ctx context.Context, stx *ledger.SignedTransaction) *ledger.Receipt
	AccountBalance(ctx context.Context, account, resource ir.Address) (ir.Decimal, error)
}

// User is a named identity: a signing key and the account it owns.
type User struct {
	Name    string
	Keys    ledger.KeyPair
	Account ir.Address
}

// PublicKey returns the user's public key.
func (u User) PublicKey() ledger.PublicKey {
	return u.Keys.Public
}

// Harness is a single-threaded test environment over one ledger. The
// current user and package are fields of the harness, never globals.
type Harness struct {
	tb        TB
	ctx       context.Context
	ledger    Ledger
	users     *registry.Registry[User]
	packages  *registry.Registry[ir.Address]
	inspector *inspect.Inspector
	logger    *slog.Logger
	session   string
}

type options struct {
	ctx        context.Context
	policy     registry.SelectionPolicy
	logger     *slog.Logger
	maxDepth   int
	sessions   SessionGenerator
	blueprints *ledger.Registry
	genesis    *ir.Decimal
	dbPath     string
}

// Option configures a Harness.
type Option func(*options)

// WithSelectionPolicy sets how new users and packages affect the current
// selection. Default FirstWriteWins.
func WithSelectionPolicy(p registry.SelectionPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the structured logger. Default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxWalkDepth bounds the state walk behind the balance queries.
func WithMaxWalkDepth(depth int) Option {
	return func(o *options) { o.maxDepth = depth }
}

// WithSessionGenerator sets the session ID source. Default UUIDv7.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.sessions = g
		}
	}
}

// WithContext sets the context passed to every ledger call.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithBlueprints registers native blueprints with the ledger NewInMemory
// creates. Ignored by New.
func WithBlueprints(reg *ledger.Registry) Option {
	return func(o *options) { o.blueprints = reg }
}

// WithGenesisAmount sets the XRD minted into each new account of the ledger
// NewInMemory creates. Ignored by New.
func WithGenesisAmount(amount ir.Decimal) Option {
	return func(o *options) { o.genesis = &amount }
}

// WithDatabase makes NewInMemory keep ledger state in a SQLite file instead
// of memory. Ignored by New.
func WithDatabase(path string) Option {
	return func(o *options) { o.dbPath = path }
}

func buildOptions(opts []Option) *options {
	o := &options{
		ctx:      context.Background(),
		policy:   registry.FirstWriteWins,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth: inspect.DefaultMaxDepth,
		sessions: UUIDv7Generator{},
		dbPath:   store.MemoryPath,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New creates a harness over an existing ledger.
func New(tb TB, l Ledger, opts ...Option) *Harness {
	tb.Helper()
	return newHarness(tb, l, buildOptions(opts))
}

func newHarness(tb TB, l Ledger, o *options) *Harness {
	h := &Harness{
		tb:        tb,
		ctx:       o.ctx,
		ledger:    l,
		users:     registry.New[User]("user", o.policy),
		packages:  registry.New[ir.Address]("package", o.policy),
		inspector: inspect.New(l, inspect.WithMaxDepth(o.maxDepth), inspect.WithLogger(o.logger)),
		session:   o.sessions.Generate(),
	}
	h.logger = o.logger.With("session", h.session)
	return h
}

// NewInMemory creates a harness over a fresh reference ledger. The store is
// closed through tb.Cleanup.
func NewInMemory(tb TB, opts ...Option) *Harness {
	tb.Helper()
	o := buildOptions(opts)

	s, err := store.Open(o.dbPath)
	require.NoError(tb, err, "open ledger store")
	tb.Cleanup(func() { s.Close() })

	ledgerOpts := []ledger.Option{ledger.WithLogger(o.logger), ledger.WithBlueprints(o.blueprints)}
	if o.genesis != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithGenesisAmount(*o.genesis))
	}
	l, err := ledger.New(o.ctx, s, ledgerOpts...)
	require.NoError(tb, err, "open ledger")

	return newHarness(tb, l, o)
}

// Ledger returns the backend.
func (h *Harness) Ledger() Ledger {
	return h.ledger
}

// SessionID returns the ID tagging this harness's logs.
func (h *Harness) SessionID() string {
	return h.session
}

// Policy returns the selection policy for users and packages.
func (h *Harness) Policy() registry.SelectionPolicy {
	return h.users.Policy()
}

// fatalf aborts the test. Callers return immediately after it.
func (h *Harness) fatalf(format string, args ...any) {
	h.tb.Helper()
	h.tb.Fatalf(format, args...)
}

// CreateUser mints a key pair and a funded account under a new name.
// Names are unique: a second CreateUser with the same name aborts.
func (h *Harness) CreateUser(name string) User {
	h.tb.Helper()
	if _, err := h.users.Get(name); err == nil {
		h.fatalf("create user %q: %v", name, registry.ErrDuplicateName)
		return User{}
	}

	kp, account, err := h.ledger.CreateAccount(h.ctx)
	if err != nil {
		h.fatalf("create user %q: %v", name, err)
		return User{}
	}
	u := User{Name: name, Keys: kp, Account: account}
	if err := h.users.Add(name, u); err != nil {
		h.fatalf("create user: %v", err)
		return User{}
	}
	h.logger.Info("user created", "user", name, "account", account, "current", h.users.CurrentName())
	return u
}

// GetUser returns the user registered under name.
func (h *Harness) GetUser(name string) User {
	h.tb.Helper()
	u, err := h.users.Get(name)
	if err != nil {
		h.fatalf("get user: %v", err)
		return User{}
	}
	return u
}

// ActingAs makes name the current user.
func (h *Harness) ActingAs(name string) *Harness {
	h.tb.Helper()
	if err := h.users.Select(name); err != nil {
		h.fatalf("acting as: %v", err)
		return h
	}
	h.logger.Debug("acting as", "user", name)
	return h
}

// CurrentUser returns the current user.
func (h *Harness) CurrentUser() User {
	h.tb.Helper()
	u, err := h.users.Current()
	if err != nil {
		h.fatalf("current user: %v", err)
		return User{}
	}
	return u
}

// Users returns every registered user by name.
func (h *Harness) Users() map[string]User {
	return h.users.All()
}

// UserNames returns user names in creation order.
func (h *Harness) UserNames() []string {
	return h.users.Names()
}

// UserCount returns the number of registered users.
func (h *Harness) UserCount() int {
	return h.users.Len()
}

// PublishPackage publishes code and registers its address under name,
// replacing any earlier package of that name.
func (h *Harness) PublishPackage(name string, code []byte) ir.Address {
	h.tb.Helper()
	addr, err := h.ledger.PublishPackage(h.ctx, code)
	if err != nil {
		h.fatalf("publish package %q: %v", name, err)
		return ""
	}
	if err := h.packages.Put(name, addr); err != nil {
		h.fatalf("publish package: %v", err)
		return ""
	}
	h.logger.Info("package published", "package", name, "address", addr, "current", h.packages.CurrentName())
	return addr
}

// GetPackage returns the address registered under name.
func (h *Harness) GetPackage(name string) ir.Address {
	h.tb.Helper()
	addr, err := h.packages.Get(name)
	if err != nil {
		h.fatalf("get package: %v", err)
		return ""
	}
	return addr
}

// UsingPackage makes name the current package.
func (h *Harness) UsingPackage(name string) *Harness {
	h.tb.Helper()
	if err := h.packages.Select(name); err != nil {
		h.fatalf("using package: %v", err)
		return h
	}
	h.logger.Debug("using package", "package", name)
	return h
}

// CurrentPackage returns the current package address.
func (h *Harness) CurrentPackage() ir.Address {
	h.tb.Helper()
	addr, err := h.packages.Current()
	if err != nil {
		h.fatalf("current package: %v", err)
		return ""
	}
	return addr
}

// CurrentPackageName returns the current package name, or "".
func (h *Harness) CurrentPackageName() string {
	return h.packages.CurrentName()
}

// PackageCount returns the number of registered package names.
func (h *Harness) PackageCount() int {
	return h.packages.Len()
}
