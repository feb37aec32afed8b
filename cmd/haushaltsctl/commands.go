package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"haushaltsbuch/internal/backend"
	"haushaltsbuch/internal/cli"
	"haushaltsbuch/internal/config"
	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/export"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/services"
	"haushaltsbuch/internal/storage"
)

// app carries what the commands share. store is opened lazily so tests can
// inject one.
type app struct {
	store  storage.Store
	ledger *services.LedgerService
	users  *services.UserService
	logger *log.Logger
	out    io.Writer
	now    func() time.Time
	opened bool
}

// filterFlags mirror the query parameters of the web listing.
type filterFlags struct {
	category string
	query    string
	from     string
	to       string
	kind     string
}

func (f filterFlags) values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set(core.ParamCategory, f.category)
	set(core.ParamQuery, f.query)
	set(core.ParamDateFrom, f.from)
	set(core.ParamDateTo, f.to)
	set(core.ParamType, f.kind)
	return v
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "Only entries of this category")
	cmd.Flags().StringVar(&f.query, "q", "", "Substring of the note (case-sensitive)")
	cmd.Flags().StringVar(&f.from, "from", "", "First date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "Last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.kind, "type", "", "income or expense")
}

func newRootCmd(a *app) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "haushaltsctl",
		Short:         "Operator tool for the haushaltsbuch ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context(), logLevel)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")

	root.AddCommand(newUsersCmd(a), newExportCmd(a), newTotalsCmd(a))
	return root
}

// open loads .env and the environment configuration, then the backend.
func (a *app) open(ctx context.Context, logLevel string) error {
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.logger == nil {
		a.logger = cli.SetupLogger(logLevel).WithComponent(log.ComponentCLI)
	}
	if a.store == nil {
		cli.LoadEnvFile()
		cfg := config.Load()
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		res, err := backend.NewFactory(a.logger).Open(ctx, bcfg)
		if err != nil {
			return err
		}
		a.store = res.Store
		a.opened = true

		categories, err := cfg.Categories()
		if err != nil {
			return err
		}
		a.ledger = services.NewLedgerService(a.store, nil, services.LedgerOptions{Categories: categories}, a.logger)
		a.users = services.NewUserService(a.store, services.UserOptions{AdminEmail: cfg.AdminEmail, BcryptCost: cfg.BcryptCost}, a.logger)
	}
	if a.ledger == nil {
		a.ledger = services.NewLedgerService(a.store, nil, services.LedgerOptions{}, a.logger)
	}
	if a.users == nil {
		a.users = services.NewUserService(a.store, services.UserOptions{}, a.logger)
	}
	return nil
}

func (a *app) close() error {
	if a.opened {
		return a.store.Close()
	}
	return nil
}

// owner resolves --user to an account id.
func (a *app) owner(ctx context.Context, email string) (int64, error) {
	if email == "" {
		return 0, errors.New("--user is required")
	}
	u, err := a.users.UserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return 0, fmt.Errorf("no account for %s", services.NormalizeEmail(email))
	}
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

func newUsersCmd(a *app) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "List accounts and change roles",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := a.users.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tE-MAIL\tADMIN\tREGISTRIERT")
			for _, u := range all {
				admin := "nein"
				if u.IsAdmin {
					admin = "ja"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Email, admin, u.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}

	role := func(use, short string, isAdmin bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <email>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := a.owner(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				// actor 0: operators may demote anyone.
				if err := a.users.SetRole(cmd.Context(), 0, id, isAdmin); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s: admin=%t\n", services.NormalizeEmail(args[0]), isAdmin)
				return nil
			},
		}
	}

	users.AddCommand(list,
		role("promote", "Grant the admin role", true),
		role("demote", "Revoke the admin role", false))
	return users
}

func newExportCmd(a *app) *cobra.Command {
	var (
		user   string
		format string
		output string
		filter filterFlags
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a ledger as CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var write func(io.Writer, []core.ExportRow) error
			switch format {
			case "csv":
				write = export.WriteCSV
			case "xlsx":
				write = export.WriteXLSX
			default:
				return fmt.Errorf("unknown format %q (csv or xlsx)", format)
			}

			owner, err := a.owner(cmd.Context(), user)
			if err != nil {
				return err
			}
			rows, err := a.ledger.ExportRows(cmd.Context(), owner, filter.values())
			if err != nil {
				return err
			}

			if output == "-" {
				return write(a.out, rows)
			}
			if output == "" {
				output = export.Filename(format, a.now())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := write(f, rows); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d Buchungen nach %s exportiert\n", len(rows), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "E-mail of the ledger owner")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Target file, - for stdout (default haushaltsbuch_<date>.<format>)")
	filter.register(cmd)
	return cmd
}

func newTotalsCmd(a *app) *cobra.Command {
	var (
		user   string
		filter filterFlags
	)
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Print income, expense and balance of a ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := a.owner(cmd.Context(), user)
			if err != nil {
				return err
			}
			t, err := a.ledger.Totals(cmd.Context(), owner, filter.values())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Einnahmen: %s\nAusgaben:  %s\nSaldo:     %s\n",
				t.Income.Format(), t.Expense.Format(), t.Balance.Format())
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "E-mail of the ledger owner")
	filter.register(cmd)
	return cmd
}
