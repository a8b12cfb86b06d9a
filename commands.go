package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/agent/planner"
	"github.com/Chative-creator-core/server/internal/agent/policy"
	"github.com/Chative-creator-core/server/internal/agent/tools"
	"github.com/Chative-creator-core/server/internal/app"
	"github.com/Chative-creator-core/server/internal/config"
)

func newAskCmd() *cobra.Command {
	var (
		req         model.Request
		tier        string
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run one message through the pipeline and print the response envelope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := model.ParseTier(tier)
			if err != nil {
				return err
			}
			req.Tier = t

			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			a, err := app.New(cmd.Context(), cfg, reg)
			if err != nil {
				return err
			}
			defer a.Close()

			env := a.Executor.Handle(cmd.Context(), req)
			if err := printJSON(cmd, env); err != nil {
				return err
			}
			if showMetrics {
				return printMetrics(cmd, reg)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.UserID, "user", "", "user id")
	f.StringVar(&req.ChannelID, "channel", "", "channel id")
	f.StringVarP(&req.Message, "message", "m", "", "message text")
	f.StringVar(&tier, "tier", string(model.TierFree), "subscription tier (FREE, PRO, AGENCY)")
	f.BoolVar(&showMetrics, "metrics", false, "print collected metric families after the response")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("channel")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func printMetrics(cmd *cobra.Command, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, mf := range families {
		fmt.Fprintf(w, "%s\t%d\n", mf.GetName(), len(mf.GetMetric()))
	}
	return w.Flush()
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalog with the minimum tier of each tool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := tools.NewRegistry(tools.Deps{})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tCATEGORY\tTIER\tDESCRIPTION")
			for _, d := range reg.Definitions() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Category, d.MinTier, d.Description)
			}
			return w.Flush()
		},
	}
}

func newRulesCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the planner rule table, or the plan for --message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := config.LoadPlanner(envFile)
			if err != nil {
				return err
			}
			rules, err := planner.LoadRules(pc.RulesFile)
			if err != nil {
				return err
			}
			reg, err := tools.NewRegistry(tools.Deps{})
			if err != nil {
				return err
			}
			if err := rules.CheckTools(reg); err != nil {
				return err
			}
			p := planner.New(rules)

			if message != "" {
				return printJSON(cmd, p.Plan(model.Request{Message: message}, planner.Hints{}))
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "# rules version %s\n", p.Version())
			fmt.Fprintln(w, "PRIORITY\tRULE\tINTENT\tSUBTYPE\tPATTERNS")
			for _, r := range p.Rules() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", r.Priority, r.Name, r.Intent, r.Subtype, len(r.Patterns))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "plan this message instead of listing rules")
	return cmd
}

func newQuotaCmd() *cobra.Command {
	var (
		userID string
		tier   string
	)
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show today's quota usage for a user without consuming it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := model.ParseTier(tier)
			if err != nil {
				return err
			}
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			rdb, err := cfg.Redis.New(cmd.Context())
			if err != nil {
				return err
			}
			defer rdb.Close()

			reg, err := tools.NewRegistry(tools.Deps{})
			if err != nil {
				return err
			}
			d, err := policy.NewEngine(rdb, cfg.Quota, reg).Usage(cmd.Context(), userID, t)
			if err != nil {
				return err
			}
			if d.Unlimited {
				fmt.Fprintf(cmd.OutOrStdout(), "%s on %s: unlimited\n", userID, t)
				return nil
			}
			return printJSON(cmd, d.Usage())
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&tier, "tier", string(model.TierFree), "subscription tier")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
