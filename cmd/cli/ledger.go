package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/occledger/internal/adapter/http/dto"
	postgresRepo "github.com/iho/occledger/internal/adapter/repository/postgres"
	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/infrastructure/postgres"
	"github.com/iho/occledger/internal/usecase"
)

// ledger is the use-case layer wired to one guarded connection.
type ledger struct {
	guard     *postgresRepo.ConnGuard
	accounts  *usecase.AccountUseCase
	transfers *usecase.TransferUseCase
	snapshots *usecase.LedgerUseCase
}

func openLedger(ctx context.Context, opts *options) (*ledger, error) {
	isolation, err := postgresRepo.ParseIsolation(opts.cfg.DatabaseIsolation)
	if err != nil {
		return nil, err
	}

	conn, err := postgres.Connect(ctx, opts.cfg.DatabaseURL, opts.cfg.DatabaseConnectTimeout)
	if err != nil {
		return nil, err
	}

	guard := postgresRepo.NewConnGuard(conn, postgresRepo.WithIsolation(isolation))

	return &ledger{
		guard:    guard,
		accounts: usecase.NewAccountUseCase(guard, postgresRepo.NewAccountRepository()),
		transfers: usecase.NewTransferUseCase(
			guard,
			postgresRepo.NewTransferExecutor(),
			postgresRepo.NewConflictClassifier(),
			postgresRepo.NewULIDGenerator(),
			nil,
			usecase.UnboundedRetry(),
		),
		snapshots: usecase.NewLedgerUseCase(guard, postgresRepo.NewLedgerRepository()),
	}, nil
}

func (l *ledger) close(ctx context.Context) {
	_ = l.guard.Close(context.WithoutCancel(ctx))
}

// withLedger opens the ledger for the duration of fn.
func withLedger(cmd *cobra.Command, opts *options, fn func(ctx context.Context, l *ledger) error) error {
	ctx, cancel := commandContext(cmd, opts.timeout)
	defer cancel()

	l, err := openLedger(ctx, opts)
	if err != nil {
		return err
	}
	defer l.close(ctx)

	return fn(ctx, l)
}

func seedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <account-id> <balance>",
		Short: "Create an account with an opening balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid balance %q: %w", args[1], err)
			}

			return withLedger(cmd, opts, func(ctx context.Context, l *ledger) error {
				account, err := l.accounts.CreateAccount(ctx, usecase.CreateAccountInput{
					ID:      domain.AccountID(args[0]),
					Balance: balance,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.AccountFromDomain(account))
			})
		},
	}
}

func balanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Read the committed balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *ledger) error {
				account, err := l.accounts.GetAccount(ctx, domain.AccountID(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.AccountFromDomain(account))
			})
		},
	}
}

func transferCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <payer-id> <payee-id> <amount>",
		Short: "Move funds between two accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseTransfer(args)
			if err != nil {
				return err
			}

			return withLedger(cmd, opts, func(ctx context.Context, l *ledger) error {
				result, err := l.transfers.Transfer(ctx, req)
				if err != nil {
					var te *domain.TransferError
					if errors.As(err, &te) {
						_ = printJSON(cmd.OutOrStdout(), dto.TransferErrorFrom("transfer failed", err))
					}
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.TransferFromDomain(result))
			})
		},
	}
}

// parseTransfer validates CLI arguments before any connection is opened.
func parseTransfer(args []string) (domain.TransferRequest, error) {
	amount, err := decimal.NewFromString(args[2])
	if err != nil {
		return domain.TransferRequest{}, fmt.Errorf("invalid amount %q: %w", args[2], err)
	}

	req := domain.TransferRequest{
		PayerID: domain.AccountID(args[0]),
		PayeeID: domain.AccountID(args[1]),
		Amount:  amount,
	}

	return req, req.Validate()
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "consistency",
		Short: "Check that no committed balance is negative",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *ledger) error {
				snapshot, err := l.snapshots.CheckConsistency(ctx)
				if snapshot != nil {
					if perr := printJSON(cmd.OutOrStdout(), dto.LedgerFromDomain(snapshot)); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	})

	return cmd
}

func migrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	cmd.PersistentFlags().StringVar(&opts.cfg.MigrationsPath, "path", opts.cfg.MigrationsPath, "Migrations directory")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := commandContext(cmd, opts.timeout)
				defer cancel()
				return postgres.RunMigrations(ctx, opts.cfg.DatabaseURL, opts.cfg.MigrationsPath)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := commandContext(cmd, opts.timeout)
				defer cancel()
				return postgres.RunMigrationsDown(ctx, opts.cfg.DatabaseURL, opts.cfg.MigrationsPath)
			},
		},
	)

	return cmd
}
