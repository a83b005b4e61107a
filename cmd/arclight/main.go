package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"arclight-go/internal/app"
	"arclight-go/internal/arclight"
	"arclight-go/internal/config"
	"arclight-go/internal/wallet"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func readConfig() (*app.Defaults, *config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return defaults, cfg, nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// command names the CLI command in the log (e.g. "publish-album", "whoami").
func newApp(ctx context.Context, command string, onProgress func(app.Snapshot)) (*app.App, error) {
	_, cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(ctx, cfg, app.Options{Command: command, OnProgress: onProgress})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// printProgress renders one line per upload step on stderr.
func printProgress(s app.Snapshot) {
	if s.Step == "" {
		return
	}
	track := ""
	if s.Tracks > 1 {
		track = fmt.Sprintf(" %d/%d", s.Track, s.Tracks)
	}
	fmt.Fprintf(os.Stderr, "\r%-8s%-7s %3d%%  [%s]", s.Step, track, s.Percent, s.State)
	if s.Percent == 100 {
		fmt.Fprintln(os.Stderr)
	}
}

// reportOrphans lists the records a failed publish left on the ledger.
func reportOrphans(err error) {
	var pe *arclight.PublishError
	if !errors.As(err, &pe) {
		return
	}
	ids := pe.OrphanedIDs()
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "Failed at %s after confirming %d record(s):\n", pe.Step, len(ids))
	for _, id := range ids {
		fmt.Fprintf(os.Stderr, "  %s\n", id)
	}
}

var rootCmd = &cobra.Command{
	Use:          "arclight",
	Short:        "Publish and browse music on a permanent ledger",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		fmt.Println("Next: arclight key generate && arclight encryption init")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, cfg, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Wallet:     %s\n", cfg.Wallet.KeyPath)
		switch cfg.Ledger.Type {
		case "filesystem":
			fmt.Printf("Ledger:     filesystem (%s)\n", cfg.Ledger.FSRoot)
		case "s3":
			fmt.Printf("Ledger:     s3 (%s/%s)\n", cfg.Ledger.S3Bucket, cfg.Ledger.S3Prefix)
		default:
			fmt.Printf("Ledger:     %s\n", cfg.Ledger.Type)
		}
		ns := arclight.DefaultNamespaces()
		if cfg.Namespaces.App != "" {
			ns.App = cfg.Namespaces.App
		}
		fmt.Printf("Namespace:  %s\n", ns.App)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Journal:    %s\n", cfg.Journal.Type)
		if cfg.Cache.Disabled {
			fmt.Println("Cache:      disabled")
		} else {
			fmt.Printf("Cache:      %s\n", cfg.Cache.TTL)
		}
		fmt.Printf("Listen:     %s\n", cfg.Server.Listen)
		return nil
	},
}

// key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the signing wallet",
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create a new wallet at the configured key path",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, "Generating wallet...")
		k, err := wallet.Generate(wallet.DefaultBits)
		if err != nil {
			return err
		}
		if err := k.WriteFile(cfg.Wallet.KeyPath); err != nil {
			return err
		}
		addr, err := wallet.Address(k)
		if err != nil {
			return err
		}

		fmt.Printf("Wallet written to %s\n", cfg.Wallet.KeyPath)
		fmt.Printf("Address: %s\n", addr)
		return nil
	},
}

var keyAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the wallet address",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "key-address", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		addr, err := a.Address()
		if err != nil {
			return err
		}
		fmt.Println(addr)
		return nil
	},
}

// encryption command
var encryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage media encryption keys",
}

var encryptionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the media key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "encryption-init", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupEncryption(pass); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Println("Encryption keys created.")
		return nil
	},
}

// whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the wallet address and display name",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "whoami", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		author, id, err := a.Whoami(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Address: %s\n", author.Address)
		fmt.Printf("Name:    %s (%s)\n", id.DisplayName, id.Kind)
		return nil
	},
}

// profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View and edit profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show [ADDRESS]",
	Short: "Show a profile (default: your own)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "profile-show", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		address := ""
		if len(args) > 0 {
			address = args[0]
		}
		p, err := a.Profile(cmd.Context(), address)
		if p == nil {
			return err
		}

		avatar := "none"
		if p.HasAvatar {
			avatar = fmt.Sprintf("%d bytes", len(p.Avatar))
		}
		fmt.Printf("Address:      %s\n", p.Address)
		fmt.Printf("Name:         %s\n", p.Identity.DisplayName)
		fmt.Printf("Avatar:       %s\n", avatar)
		fmt.Printf("Location:     %s\n", p.Location)
		fmt.Printf("Website:      %s\n", p.Website)
		fmt.Printf("Introduction: %s\n", p.Introduction)
		fmt.Printf("NetEase:      %s\n", p.NeteaseID)
		fmt.Printf("SoundCloud:   %s\n", p.SoundcloudID)
		fmt.Printf("Bandcamp:     %s\n", p.BandcampID)
		if err != nil {
			return fmt.Errorf("profile is incomplete: %w", err)
		}
		return nil
	},
}

func profileFieldNames() string {
	names := []string{string(arclight.KindName), string(arclight.KindAvatar)}
	for _, f := range arclight.ProfileFields {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

var profileSetCmd = &cobra.Command{
	Use:   "set FIELD VALUE",
	Short: "Publish a profile value",
	Long:  "Publish a profile value. FIELD is one of: " + profileFieldNames() + ". For avatar, VALUE is an image file.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "profile-set", printProgress)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.SetProfile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", res.Kind, res.ID)
		return nil
	},
}

// publish command
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a release",
}

func newPublishCmd(kind arclight.ReleaseKind, short string) *cobra.Command {
	c := &cobra.Command{
		Use:   string(kind),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, _ := cmd.Flags().GetString("manifest")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			a, err := newApp(cmd.Context(), "publish-"+string(kind), printProgress)
			if err != nil {
				return err
			}
			defer a.Close()

			if dryRun {
				r, err := a.LoadRelease(kind, manifestPath)
				if err != nil {
					return err
				}
				fmt.Printf("%s %q: %d track(s), cover %s (%d bytes)\n",
					r.Kind, r.Title, len(r.Tracks), r.Cover.ContentType, len(r.Cover.Data))
				return nil
			}

			res, err := a.Publish(cmd.Context(), kind, manifestPath)
			if err != nil {
				reportOrphans(err)
				return fmt.Errorf("publish failed: %w", err)
			}

			fmt.Printf("Published %s as %s\n", res.Release, res.Author.Address)
			fmt.Printf("Cover: %s\n", res.CoverID)
			for i, m := range res.Media {
				fmt.Printf("Media: %s  %d. %s\n", m.ID, i+1, m.Title)
			}
			fmt.Printf("Info:  %s\n", res.InfoID)
			fmt.Printf("Index: %s\n", res.IndexID)
			return nil
		},
	}
	c.Flags().StringP("manifest", "m", "release.toml", "Release manifest (TOML or YAML)")
	c.Flags().Bool("dry-run", false, "Load and validate the manifest without publishing")
	return c
}

// posts command
var postsCmd = &cobra.Command{
	Use:   "posts [ADDRESS]",
	Short: "List an author's releases (default: your own)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "posts", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		address := ""
		if len(args) > 0 {
			address = args[0]
		}
		entries, err := a.Posts(cmd.Context(), address)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No releases.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-11s  %s  %d\n", e.Kind, e.ID, e.Timestamp)
		}
		return nil
	},
}

// releases command
var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List releases of one kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		genre, _ := cmd.Flags().GetString("genre")

		a, err := newApp(cmd.Context(), "releases", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.Releases(cmd.Context(), kind, genre)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No releases found.")
			return nil
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

// release command
var releaseCmd = &cobra.Command{
	Use:   "release ID",
	Short: "Show a release",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "release", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.Release(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %q by %s\n", info.Kind, info.Title, info.Author)
		if info.Desp != "" {
			fmt.Printf("  %s\n", info.Desp)
		}
		if info.Genre != "" {
			fmt.Printf("Genre:    %s\n", info.Genre)
		}
		if info.Podcast != "" {
			fmt.Printf("Podcast:  %s (%s)\n", info.Podcast, info.Category)
		}
		fmt.Printf("Price:    %g\n", info.Price)
		fmt.Printf("Duration: %gs\n", info.Duration)
		fmt.Printf("Cover:    %s\n", info.Cover)
		for i, m := range info.Media {
			fmt.Printf("Media:    %s  %d. %s\n", m.ID, i+1, m.Title)
		}
		return nil
	},
}

// fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch ID",
	Short: "Download a record payload, decrypting media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd.Context(), "fetch", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.Fetch(cmd.Context(), args[0], func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
		if err != nil {
			return err
		}
		if out == "" || out == "-" {
			_, err := os.Stdout.Write(m.Data)
			return err
		}
		if err := os.WriteFile(out, m.Data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %d bytes (%s) to %s\n", len(m.Data), m.ContentType, out)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View publish history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, e := range entries {
			op := e.Operation
			status := op.State.String()
			if op.Error != "" {
				status = "failed at " + string(op.FailedStep)
			}
			fmt.Printf("#%d  %-22s  %s  %-16s  %s\n",
				op.ID,
				op.Name,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				status,
				op.Title,
			)
			if e.Orphaned() {
				for _, r := range e.Records {
					fmt.Printf("      orphaned %-18s %s\n", r.Kind, r.ID)
				}
			}
		}
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		a, err := newApp(cmd.Context(), "serve", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(cmd.Context(), listen)
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keyCmd.AddCommand(keyGenerateCmd)
	keyCmd.AddCommand(keyAddressCmd)

	encryptionCmd.AddCommand(encryptionInitCmd)

	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)

	publishCmd.AddCommand(newPublishCmd(arclight.ReleaseSingle, "Publish a single"))
	publishCmd.AddCommand(newPublishCmd(arclight.ReleaseAlbum, "Publish an album"))
	publishCmd.AddCommand(newPublishCmd(arclight.ReleasePodcast, "Publish a podcast episode"))
	publishCmd.AddCommand(newPublishCmd(arclight.ReleaseSoundEffect, "Publish a sound effect"))

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(encryptionCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(releasesCmd)
	releasesCmd.Flags().StringP("kind", "k", string(arclight.ReleaseSingle), "Release kind (single, album, podcast, soundeffect)")
	releasesCmd.Flags().StringP("genre", "g", "", "Only releases in this genre (category for podcasts)")
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "Listen address (default: server.listen from config)")
}
