package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/storepos/internal/database"
	"github.com/storepos/internal/license"
	"github.com/storepos/internal/licensing"
)

// StatusCommand prints the licence state as the client sees it.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the current licence state",
		Action: func(c *cli.Context) error {
			cfg, closer, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer closer.Close()

			store := license.NewStore(license.NewRemoteClient(cfg.LicenseClient()))
			return reportStatus(c.Context, store, os.Stdout)
		},
	}
}

// reportStatus refreshes store and prints the result. A failed reconcile
// still carries a fresh state, so it is logged rather than returned.
func reportStatus(ctx context.Context, store *license.Store, w io.Writer) error {
	st, err := store.Refresh(ctx)
	if err != nil {
		var rerr license.ReconcileError
		if !errors.As(err, &rerr) {
			return fmt.Errorf("failed to query license: %w", err)
		}
		log.Warn().Err(err).Msg("license reconcile failed")
	}
	first, err := store.LoadFirstRun(ctx)
	if err != nil {
		return fmt.Errorf("failed to query first-run flag: %w", err)
	}
	printState(w, st, first)
	return nil
}

func printState(w io.Writer, st license.LicenseState, first license.FirstRunState) {
	fmt.Fprintf(w, "Status:         %s\n", st.Status)
	fmt.Fprintf(w, "Type:           %s\n", st.LicenseType)
	fmt.Fprintf(w, "Days remaining: %d\n", st.DaysRemaining)
	fmt.Fprintf(w, "Read-only:      %t\n", st.ReadOnly)
	fmt.Fprintf(w, "First run:      %t\n", first.IsFirstRun)
	if b := license.BannerFor(st); b.Visible {
		fmt.Fprintf(w, "[%s] %s\n", b.Tier, b.Message)
	}
}

// ActivateCommand redeems an activation code against the licence service.
func ActivateCommand() *cli.Command {
	return &cli.Command{
		Name:      "activate",
		Usage:     "Redeem an activation code",
		ArgsUsage: "CODE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one activation code is required", 2)
			}
			cfg, closer, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer closer.Close()

			client := license.NewRemoteClient(cfg.LicenseClient())
			store := license.NewStore(client)
			res := license.NewActivator(client, store).Submit(c.Context, c.Args().First())
			fmt.Println(res.Message)
			if !res.Success {
				return cli.Exit("", 1)
			}
			if st, ok := store.Current(); ok {
				printState(os.Stdout, st, store.FirstRun())
			}
			return nil
		},
	}
}

// CodesCommand manages redeemable codes directly in the licence database.
func CodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "codes",
		Usage: "Manage activation codes in the licence database",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Register an issued activation code",
				ArgsUsage: "CODE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "kind",
						Aliases: []string{"k"},
						Usage:   "Licence kind granted by the code: monthly or annual",
						Value:   "monthly",
					},
				},
				Action: runCodesAdd,
			},
			{
				Name:   "history",
				Usage:  "List past activations",
				Action: runCodesHistory,
			},
		},
	}
}

func openService(c *cli.Context) (*licensing.Service, func(), error) {
	cfg, closer, err := bootstrap(c)
	if err != nil {
		return nil, nil, err
	}
	// An empty URL falls back to DATABASE_URL or a .env file.
	db, err := database.NewDB(c.Context, cfg.Server.DatabaseURL)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	storage := licensing.NewStorage(db)
	if err := storage.Migrate(c.Context); err != nil {
		db.Close()
		closer.Close()
		return nil, nil, fmt.Errorf("failed to migrate license schema: %w", err)
	}
	return licensing.NewService(storage), func() {
		db.Close()
		closer.Close()
	}, nil
}

func runCodesAdd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one activation code is required", 2)
	}
	kind := licensing.Kind(strings.ToUpper(c.String("kind")))
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", c.String("kind"))
	}
	svc, done, err := openService(c)
	if err != nil {
		return err
	}
	defer done()

	if err := svc.IssueCode(c.Context, c.Args().First(), kind); err != nil {
		return fmt.Errorf("failed to add code: %w", err)
	}
	fmt.Printf("Registered %s code (%d days)\n", kind, kind.Days())
	return nil
}

func runCodesHistory(c *cli.Context) error {
	svc, done, err := openService(c)
	if err != nil {
		return err
	}
	defer done()

	entries, err := svc.History(c.Context)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	printHistory(os.Stdout, entries)
	return nil
}

func printHistory(w io.Writer, entries []licensing.HistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVATED\tKIND\tDAYS\tEXPIRES\tCODE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			e.ActivatedAt.Format(time.DateOnly), e.Kind, e.DaysAdded, e.ExpiresAt.Format(time.DateOnly), e.Code)
	}
	tw.Flush()
}
