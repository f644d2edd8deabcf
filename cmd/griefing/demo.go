package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stellar/go/keypair"

	"griefing/internal/address"
	"griefing/internal/agreement"
	"griefing/internal/debug"
	"griefing/internal/factory"
	"griefing/internal/griefing"
	"griefing/internal/models"
	"griefing/internal/orchestrator"
	"griefing/internal/registry"
	"griefing/internal/retry"
	"griefing/internal/services"
	"griefing/internal/storage"
	"griefing/internal/token"
)

var (
	demoRatio     string
	demoCountdown time.Duration
	demoStake     int64
	demoPunish    int64
)

func init() {
	demoCmd.Flags().StringVar(&demoRatio, "ratio", "2", "Griefing ratio (decimal)")
	demoCmd.Flags().DurationVar(&demoCountdown, "countdown", 24*time.Hour, "Countdown length")
	demoCmd.Flags().Int64Var(&demoStake, "stake", 100, "Tokens staked")
	demoCmd.Flags().Int64Var(&demoPunish, "punish", 10, "Tokens burned from the stake")
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run one agreement through stake, countdown, punishment and retrieval",
	Long:  "Creates a registry, an agreement factory and one agreement, then plays its full lifecycle on a simulated clock. Events are persisted to DATABASE_URL when set.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		repository, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer repository.Close()

		ratio, err := griefing.ParseRatio(demoRatio)
		if err != nil {
			return err
		}

		result, err := runDemo(ctx, repository, demoOptions{
			Admin:     address.Address(cfg.AdminAddress),
			Ratio:     ratio,
			Countdown: demoCountdown,
			Stake:     token.Units(demoStake),
			Punish:    token.Units(demoPunish),
			Retry:     retry.NewStrategy(cfg.Retry),
		})
		if err != nil {
			return err
		}

		return debug.WriteJSON(cmd.OutOrStdout(), result)
	},
}

type demoOptions struct {
	Admin     address.Address // random account when zero
	Ratio     *big.Int
	Countdown time.Duration
	Stake     *big.Int
	Punish    *big.Int
	Retry     retry.Strategy
}

// demoResult is what the demo prints once the agreement is closed
type demoResult struct {
	Registry    string           `json:"registry_id"`
	Factory     string           `json:"factory_id"`
	Agreement   models.Agreement `json:"agreement"`
	Cost        string           `json:"grief_cost_paid"`
	Retrieved   string           `json:"stake_retrieved"`
	TotalSupply string           `json:"total_supply"`
	Burned      string           `json:"burned"`
	Events      []models.Event   `json:"events"`
}

// runDemo wires the full stack on a mock clock and plays one agreement
// from creation to retrieval
func runDemo(ctx context.Context, repository storage.Repository, opts demoOptions) (*demoResult, error) {
	clk := clock.NewMock()
	clk.Set(time.Now().UTC().Truncate(time.Second))

	strategy := opts.Retry
	if strategy == nil {
		strategy = retry.NewNoRetryStrategy()
	}

	orch := orchestrator.New([]services.Service{
		services.NewEventService(repository, strategy),
		services.NewAgreementService(repository, strategy),
		services.NewRegistryService(repository, strategy),
		services.NewMetricsService(),
	})
	orch.Start(ctx)
	defer orch.Stop()

	admin := opts.Admin
	if admin.IsZero() {
		admin = randomAccount()
	}
	staker, counterparty := randomAccount(), randomAccount()

	// Identities are unique per run so repeated demos against one database
	// never collide on instance IDs
	run := []byte(uuid.NewString())
	nmr := token.NewLedger(address.Contract([]byte("token"), run))
	reg := registry.New(address.Contract([]byte("registry"), run), admin, agreement.InstanceType,
		registry.WithClock(clk), registry.WithEmitter(orch))
	tmpl := agreement.NewTemplate(address.Contract([]byte("template"), run),
		agreement.WithClock(clk), agreement.WithEmitter(orch))
	fac := factory.New[agreement.Params, *agreement.Agreement](
		address.Contract([]byte("factory"), run), tmpl, reg)

	if err := reg.AuthorizeFactory(ctx, admin, fac.ID(), nil); err != nil {
		return nil, fmt.Errorf("failed to authorize factory: %w", err)
	}

	inst, err := fac.Create(ctx, staker, agreement.Params{
		Staker:          staker,
		Counterparty:    counterparty,
		Ratio:           opts.Ratio,
		RatioType:       griefing.Dec,
		CountdownLength: opts.Countdown,
		StaticMetadata:  []byte("griefing demo"),
		Token:           nmr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agreement: %w", err)
	}

	cost, err := griefing.DefaultStrategies().Cost(griefing.Dec, opts.Ratio, opts.Punish)
	if err != nil {
		return nil, err
	}

	// Fund both sides and let the agreement pull what it needs
	if err := fund(ctx, nmr, staker, inst.ID(), opts.Stake); err != nil {
		return nil, err
	}
	if err := fund(ctx, nmr, counterparty, inst.ID(), cost); err != nil {
		return nil, err
	}

	if err := inst.IncreaseStake(ctx, staker, new(big.Int), opts.Stake); err != nil {
		return nil, fmt.Errorf("failed to stake: %w", err)
	}
	if _, err := inst.Punish(ctx, counterparty, counterparty, opts.Punish, []byte("missed delivery")); err != nil {
		return nil, fmt.Errorf("failed to punish: %w", err)
	}

	deadline, err := inst.StartCountdown(ctx, staker)
	if err != nil {
		return nil, fmt.Errorf("failed to start countdown: %w", err)
	}
	clk.Set(deadline)

	retrieved, err := inst.RetrieveStake(ctx, staker, staker)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve stake: %w", err)
	}

	slog.Info("Demo finished",
		"agreement_id", inst.ID(),
		"retrieved", token.Format(retrieved),
		"burned", token.Format(nmr.Burned()),
	)

	snapshot := inst.Snapshot()
	debug.PrintAgreement(&snapshot)

	if err := orch.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to deliver events: %w", err)
	}

	events, err := repository.ListEvents(ctx, models.EventFilter{SourceID: string(inst.ID())})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return &demoResult{
		Registry:    string(reg.ID()),
		Factory:     string(fac.ID()),
		Agreement:   snapshot,
		Cost:        token.Format(cost),
		Retrieved:   token.Format(retrieved),
		TotalSupply: token.Format(nmr.TotalSupply()),
		Burned:      token.Format(nmr.Burned()),
		Events:      events,
	}, nil
}

func fund(ctx context.Context, nmr *token.Ledger, owner, spender address.Address, amount *big.Int) error {
	if err := nmr.Mint(ctx, owner, amount); err != nil {
		return fmt.Errorf("failed to mint for %s: %w", owner, err)
	}
	return nmr.Approve(ctx, owner, spender, amount)
}

func randomAccount() address.Address {
	return address.Address(keypair.MustRandom().Address())
}
