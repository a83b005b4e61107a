package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"arclight-go/internal/api"
	"arclight-go/internal/arclight"
	"arclight-go/internal/config"
	"arclight-go/internal/database"
	"arclight-go/internal/encryption"
	"arclight-go/internal/fs"
	"arclight-go/internal/ledger"
	"arclight-go/internal/manifest"
	"arclight-go/internal/wallet"
)

// App is the application layer between the CLI and the publisher and
// resolver. It constructs all dependencies from config, exposes high-level
// operations that accept raw strings, and releases resources on Close.
type App struct {
	cfg        *config.Config
	ledger     arclight.Ledger
	encryptor  arclight.Encryptor
	journal    arclight.Journal
	resolver   *arclight.Resolver
	publisher  *arclight.Publisher
	loader     *fs.MediaLoader
	namespaces arclight.Namespaces
	logger     arclight.Logger
	view       *ViewState
	key        *wallet.JWK
	logFile    *os.File
}

// Options tune an App for one command.
type Options struct {
	// Command names the CLI command in the log.
	Command string
	// OnProgress receives the view after every progress event.
	OnProgress func(Snapshot)
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	if opts.Command != "" {
		opID += "-" + opts.Command
	}
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a, err := newApp(ctx, cfg, logger, opts)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger arclight.Logger, opts Options) (*App, error) {
	ns := namespacesFromConfig(cfg.Namespaces)
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	l, err := ledger.NewLedgerFromConfig(ctx, cfg.Ledger, arclight.UUIDGenerator{})
	if err != nil {
		return nil, fmt.Errorf("creating ledger: %w", err)
	}
	if !cfg.Cache.Disabled {
		ttl, err := cfg.Cache.Duration()
		if err != nil {
			return nil, err
		}
		l = ledger.NewCachedLedger(l, ttl)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	journal, err := database.NewJournalFromConfig(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}

	resolver := arclight.NewResolver(l, ns, logger)
	publisher := arclight.NewPublisher(l, resolver, enc, journal, ns, arclight.RealClock{}, arclight.UUIDGenerator{}, logger)

	return &App{
		cfg:        cfg,
		ledger:     l,
		encryptor:  enc,
		journal:    journal,
		resolver:   resolver,
		publisher:  publisher,
		loader:     fs.NewMediaLoader(),
		namespaces: ns,
		logger:     logger,
		view:       NewViewState(opts.OnProgress),
	}, nil
}

func namespacesFromConfig(c config.NamespaceConfig) arclight.Namespaces {
	ns := arclight.DefaultNamespaces()
	if c.App != "" {
		ns.App = c.App
	}
	if c.Identity != "" {
		ns.Identity = c.Identity
	}
	if c.Avatar != "" {
		ns.Avatar = c.Avatar
	}
	return ns
}

// View returns the progress view of the running operation.
func (a *App) View() *ViewState { return a.view }

// Key loads the wallet named by the config on first use.
func (a *App) Key() (*wallet.JWK, error) {
	if a.key != nil {
		return a.key, nil
	}
	k, err := wallet.LoadFile(a.cfg.Wallet.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading wallet: %w", err)
	}
	a.key = k
	return k, nil
}

// Address returns the wallet's address.
func (a *App) Address() (arclight.Address, error) {
	key, err := a.Key()
	if err != nil {
		return "", err
	}
	return a.ledger.DeriveAddress(key)
}

// Whoami resolves the wallet's address and display identity.
func (a *App) Whoami(ctx context.Context) (arclight.Author, arclight.Identity, error) {
	key, err := a.Key()
	if err != nil {
		return arclight.Author{}, arclight.Identity{}, err
	}
	author, err := a.publisher.Author(ctx, key)
	if err != nil {
		return arclight.Author{}, arclight.Identity{}, err
	}
	id, err := a.resolver.ResolveIdentity(ctx, author.Address)
	if err != nil {
		return author, arclight.Identity{}, err
	}
	return author, id, nil
}

// address returns raw as an address, or the wallet's own when raw is empty.
func (a *App) address(raw string) (arclight.Address, error) {
	if raw != "" {
		return arclight.Address(raw), nil
	}
	return a.Address()
}

// Profile resolves the profile of address, or of the wallet when empty.
// A partial profile is returned alongside the errors of the parts that failed.
func (a *App) Profile(ctx context.Context, address string) (*arclight.Profile, error) {
	addr, err := a.address(address)
	if err != nil {
		return nil, err
	}
	return a.resolver.ResolveProfile(ctx, addr)
}

// SetProfile publishes one profile value. field is a profile field name,
// "name" for the username or "avatar" with value naming an image file.
func (a *App) SetProfile(ctx context.Context, field, value string) (*arclight.FieldResult, error) {
	key, err := a.Key()
	if err != nil {
		return nil, err
	}
	switch field {
	case string(arclight.KindName):
		return a.publisher.SetUsername(ctx, key, value, a.view)
	case string(arclight.KindAvatar):
		media, err := a.loader.Load(value, "")
		if err != nil {
			return nil, fmt.Errorf("loading avatar: %w", err)
		}
		return a.publisher.SetAvatar(ctx, key, media, a.view)
	}
	f, err := arclight.ParseProfileField(field)
	if err != nil {
		return nil, err
	}
	return a.publisher.UpdateProfileField(ctx, key, f, value, a.view)
}

// LoadRelease reads a manifest into a draft of kind without publishing it.
func (a *App) LoadRelease(kind arclight.ReleaseKind, manifestPath string) (*arclight.Release, error) {
	m, err := manifest.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}
	return m.Release(a.loader, kind)
}

// Publish loads the manifest and publishes the release it describes.
func (a *App) Publish(ctx context.Context, kind arclight.ReleaseKind, manifestPath string) (*arclight.PublishResult, error) {
	release, err := a.LoadRelease(kind, manifestPath)
	if err != nil {
		return nil, err
	}
	key, err := a.Key()
	if err != nil {
		return nil, err
	}
	return a.publisher.Publish(ctx, key, release, a.view)
}

// Posts returns the post index of address, or of the wallet when empty.
func (a *App) Posts(ctx context.Context, address string) ([]arclight.PostEntry, error) {
	addr, err := a.address(address)
	if err != nil {
		return nil, err
	}
	return a.resolver.ResolvePostIndex(ctx, addr)
}

// Releases lists info record ids of kind, optionally narrowed by genre.
func (a *App) Releases(ctx context.Context, kind, genre string) ([]arclight.RecordID, error) {
	k, err := arclight.ParseReleaseKind(kind)
	if err != nil {
		return nil, err
	}
	return a.resolver.ResolveReleaseList(ctx, k, genre)
}

// Release decodes one info record.
func (a *App) Release(ctx context.Context, id string) (*arclight.ReleaseInfo, error) {
	return a.resolver.FetchRelease(ctx, arclight.RecordID(id))
}

// Fetch returns a record payload. Media payloads are decrypted with the
// private key unlocked by passphrase; passphrase is requested only then.
func (a *App) Fetch(ctx context.Context, id string, passphrase func() (string, error)) (*arclight.Media, error) {
	rid := arclight.RecordID(id)
	meta, err := a.ledger.FetchRecord(ctx, rid)
	if err != nil {
		return nil, err
	}
	kind, err := meta.Tags.Kind()
	if err != nil || !arclight.IsMediaKind(kind) {
		return a.resolver.FetchCover(ctx, rid)
	}

	pass, err := passphrase()
	if err != nil {
		return nil, err
	}
	dec, err := a.encryptor.Unlock(pass)
	if err != nil {
		return nil, fmt.Errorf("unlocking media key: %w", err)
	}
	return a.resolver.FetchMedia(ctx, rid, dec)
}

// HistoryEntry is one journaled operation and the records it confirmed.
type HistoryEntry struct {
	Operation *arclight.Operation
	Records   []arclight.SubmittedRecord
}

// Orphaned reports whether the operation failed after confirming records.
func (h HistoryEntry) Orphaned() bool {
	return h.Operation.Error != "" && len(h.Records) > 0
}

// History returns the most recent journaled operations, newest first.
func (a *App) History(limit int) ([]HistoryEntry, error) {
	ops, err := a.journal.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	entries := make([]HistoryEntry, 0, len(ops))
	for _, op := range ops {
		recs, err := a.journal.ListSubmitted(op.ID)
		if err != nil {
			return nil, fmt.Errorf("listing records of operation %d: %w", op.ID, err)
		}
		entries = append(entries, HistoryEntry{Operation: op, Records: recs})
	}
	return entries, nil
}

// SetupEncryption generates the media key pair.
func (a *App) SetupEncryption(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	return a.encryptor.Setup(passphrase)
}

// Serve runs the HTTP read API until ctx is cancelled. An empty addr uses
// the configured listen address.
func (a *App) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.cfg.Server.Listen
	}
	e := api.NewServer(api.NewHandler(a.resolver, a.ledger, a.logger))
	return api.Serve(ctx, e, addr, a.logger)
}

// Close closes the journal and the log file.
func (a *App) Close() error {
	var errs []error
	if err := a.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing journal: %w", err))
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}
