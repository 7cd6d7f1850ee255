package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelcore/agent/bridge"
	"github.com/modelcore/agent/core"
)

// loader matches the loadCfg closure built in newRootCommand; every
// subcommand below takes one so cobra can defer config resolution (and
// thus flag parsing) until RunE actually fires.
type loader func() (*core.Config, error)

// runOne wires a fresh app from loadCfg and dispatches a single bridge
// request through it, printing the reply's message to stdout. Every
// one-shot subcommand (everything but serve) is a thin flag-to-Request
// translation in front of this, so the CLI and the bridge protocol never
// drift apart.
func runOne(cmd *cobra.Command, load loader, req bridge.Request) error {
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("starting app: %w", err)
	}
	defer a.shutdown(cmd.Context())

	rep := a.adapter.Dispatch(cmd.Context(), req)
	fmt.Fprintln(cmd.OutOrStdout(), rep.Message)
	if !rep.OK {
		return fmt.Errorf("%s failed", req.Cmd)
	}
	return nil
}

func newServeCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the bridge protocol over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("starting app: %w", err)
			}
			defer a.shutdown(cmd.Context())
			return a.adapter.RunStdio(cmd.Context())
		},
	}
}

func newRunCommand(load loader) *cobra.Command {
	var input, conversationID string
	var noContext bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Decompose and execute a natural-language modeling request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{
				Cmd: "run", Input: input, ConversationID: conversationID, NoContext: noContext,
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "the request text to run")
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "conversation to append this turn to")
	cmd.Flags().BoolVar(&noContext, "no-context", false, "set no_context on the request; the run command does not act on it and still loads prior session context")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newPlanCommand(load loader) *cobra.Command {
	var input, conversationID, outputPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Decompose a request into a task plan without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{
				Cmd: "plan", Input: input, ConversationID: conversationID, OutputPath: outputPath,
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "the request text to plan")
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "conversation supplying prior context")
	cmd.Flags().StringVar(&outputPath, "output-path", "", "write the plan JSON to this path instead of stdout only")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newExecCommand(load loader) *cobra.Command {
	var path, conversationID string
	var codeOnly bool

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Re-run a previously captured request against the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{
				Cmd: "exec", Path: path, ConversationID: conversationID, CodeOnly: codeOnly,
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "file holding the original request text")
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "conversation to append this turn to")
	cmd.Flags().BoolVar(&codeOnly, "code-only", false, "decompose only, skip backend execution")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newDemoCommand(load loader) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a canned request end to end, useful for a smoke test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{Cmd: "demo", ConversationID: conversationID})
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "conversation to append this turn to")
	return cmd
}

func newDoctorCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report the health of every wired component",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{Cmd: "doctor"})
		},
	}
}

func newModelsCommand(load loader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List saved models on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("starting app: %w", err)
			}
			defer a.shutdown(cmd.Context())

			rep := a.adapter.Dispatch(cmd.Context(), bridge.Request{Cmd: "models_list", Limit: limit})
			if !rep.OK {
				fmt.Fprintln(cmd.OutOrStdout(), rep.Message)
				return fmt.Errorf("models_list failed")
			}
			if len(rep.Models) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved models")
				return nil
			}
			for _, m := range rep.Models {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\t%s\n", m.Path, m.SizeBytes, m.ModifiedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of models listed, newest first (0 means no cap)")
	return cmd
}

func newContextCommand(load loader) *cobra.Command {
	root := &cobra.Command{
		Use:   "context",
		Short: "Inspect and edit a conversation's session context",
	}

	var conversationID string
	root.PersistentFlags().StringVar(&conversationID, "conversation-id", "default", "conversation to operate on")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print a conversation's stored summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{Cmd: "context_show", ConversationID: conversationID})
		},
	}

	var summaryText string
	setSummary := &cobra.Command{
		Use:   "set-summary",
		Short: "Overwrite a conversation's stored summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{Cmd: "context_set_summary", ConversationID: conversationID, Text: summaryText})
		},
	}
	setSummary.Flags().StringVar(&summaryText, "text", "", "the summary text to store")
	_ = setSummary.MarkFlagRequired("text")

	history := &cobra.Command{
		Use:   "history",
		Short: "Print a conversation's turn history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{Cmd: "context_history", ConversationID: conversationID})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print a conversation's entry counts, last update time and latest artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{Cmd: "context_stats", ConversationID: conversationID})
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Clear a conversation's stored summary and history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, load, bridge.Request{Cmd: "context_clear", ConversationID: conversationID})
		},
	}

	root.AddCommand(show, setSummary, history, stats, clear)
	return root
}
