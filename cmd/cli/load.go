package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iho/occledger/internal/adapter/http/dto"
	"github.com/iho/occledger/internal/domain"
)

// loadStats aggregates the outcome of a load run.
type loadStats struct {
	mu sync.Mutex

	Success      int
	Insufficient int
	Errors       int
	Attempts     int
	latencyMS    float64
}

func (s *loadStats) record(resp *dto.TransferResponse, insufficient bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err != nil:
		s.Errors++
	case insufficient:
		s.Insufficient++
	default:
		s.Success++
		s.Attempts += resp.Attempts
		if ms, ok := parseMillis(resp.TransactionTime); ok {
			s.latencyMS += ms
		}
	}
}

func (s *loadStats) print(w io.Writer, completed int) {
	fmt.Fprintf(w, "\nCompleted %d transfers\n\nResults:\n", completed)
	fmt.Fprintf(w, "  Success: %d\n", s.Success)
	fmt.Fprintf(w, "  Errors:  %d\n", s.Errors)
	fmt.Fprintf(w, "  Insufficient balance: %d\n", s.Insufficient)
	if s.Success > 0 {
		fmt.Fprintf(w, "  Avg latency: %.3fms\n", s.latencyMS/float64(s.Success))
		fmt.Fprintf(w, "  Avg attempts: %.2f\n", float64(s.Attempts)/float64(s.Success))
	}
}

// parseMillis reads the "16.955ms" format of transaction_time.
func parseMillis(s string) (float64, bool) {
	ms, err := strconv.ParseFloat(strings.TrimSuffix(s, "ms"), 64)
	return ms, err == nil
}

type loadConfig struct {
	iters    int
	threads  int
	accounts int
	idsFile  string
	maxCents int64
}

func loadCmd(opts *options) *cobra.Command {
	lc := loadConfig{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Send random transfers to the ledger API and report latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := loadAccountIDs(lc)
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: opts.timeout}
			stats, err := runLoad(cmd.Context(), client, opts.baseURL, ids, lc)
			stats.print(cmd.OutOrStdout(), stats.Success+stats.Insufficient+stats.Errors)
			return err
		},
	}

	cmd.Flags().IntVar(&lc.iters, "iters", 1000, "Number of transfers to send")
	cmd.Flags().IntVar(&lc.threads, "threads", 1, "Number of parallel senders")
	cmd.Flags().IntVar(&lc.accounts, "accounts", 1000, "Number of integer accounts (1 to N)")
	cmd.Flags().StringVar(&lc.idsFile, "ids-file", "", "File with one account id per line, e.g. UUIDs")
	cmd.Flags().Int64Var(&lc.maxCents, "max-cents", 10000, "Upper bound of a random amount in cents")

	return cmd
}

// loadAccountIDs returns ids 1..N, or the ids listed in the file.
func loadAccountIDs(lc loadConfig) ([]domain.AccountID, error) {
	if lc.idsFile == "" {
		if lc.accounts < 2 {
			return nil, fmt.Errorf("need at least 2 accounts, got %d", lc.accounts)
		}
		ids := make([]domain.AccountID, lc.accounts)
		for i := range ids {
			ids[i] = domain.AccountID(strconv.Itoa(i + 1))
		}
		return ids, nil
	}

	f, err := os.Open(lc.idsFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []domain.AccountID
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			ids = append(ids, domain.AccountID(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(ids) < 2 {
		return nil, fmt.Errorf("%s: need at least 2 account ids, got %d", lc.idsFile, len(ids))
	}
	return ids, nil
}

func runLoad(ctx context.Context, client *http.Client, baseURL string, ids []domain.AccountID, lc loadConfig) (*loadStats, error) {
	stats := &loadStats{}
	threads := max(lc.threads, 1)
	maxCents := max(lc.maxCents, 1)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)

	for i := 0; i < lc.iters; i++ {
		payer := ids[rand.IntN(len(ids))]
		payee := ids[rand.IntN(len(ids))]
		for payee == payer {
			payee = ids[rand.IntN(len(ids))]
		}
		amount := decimal.New(rand.Int64N(maxCents)+1, -2)

		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			resp, insufficient, err := postTransfer(ctx, client, baseURL, payer, payee, amount)
			stats.record(resp, insufficient, err)
			return nil
		})
	}

	return stats, g.Wait()
}

func postTransfer(ctx context.Context, client *http.Client, baseURL string, payer, payee domain.AccountID, amount decimal.Decimal) (*dto.TransferResponse, bool, error) {
	body, err := json.Marshal(dto.CreateTransferRequest{PayerID: payer, PayeeID: payee, Amount: amount})
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var out dto.TransferResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, false, err
		}
		return &out, false, nil
	case http.StatusUnprocessableEntity:
		return nil, true, nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}
