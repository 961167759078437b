package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/contentcache"
)

func newListCmd(a func() *app) *cobra.Command {
	var page, limit string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of content, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := contentcache.ParseListQuery(page, limit)
			if err != nil {
				return err
			}
			env, err := a().reader.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "page number (default 1)")
	cmd.Flags().StringVar(&limit, "limit", "", "page size, 1-100 (default 20)")
	return cmd
}

var errNotFound = errors.New("not found")

func newGetCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			it, ok, err := a().reader.ByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", args[0], errNotFound)
			}
			return printJSON(cmd.OutOrStdout(), it)
		},
	}
}

func newTodayCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Print content created today (Asia/Kolkata)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a().reader.Today(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), env)
		},
	}
}

func newInvalidateCmd(a func() *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached reads (all families, or one item with --id)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := a().reader
			if id != "" {
				r.InvalidateOne(cmd.Context(), id)
				fmt.Fprintf(cmd.OutOrStdout(), "invalidated doc:%s\n", id)
				return nil
			}
			r.InvalidateAll(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "invalidated list:*, doc:*, today")
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "invalidate a single item")
	return cmd
}

func newSeedCmd(a func() *app) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample content through the write path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n <= 0 {
				return fmt.Errorf("--n must be positive, got %d", n)
			}
			app := a()
			now := time.Now().UTC()
			for i := 0; i < n; i++ {
				it, err := app.writer.Create(cmd.Context(), contentcache.ContentItem{
					Title:     fmt.Sprintf("Sample lesson %d", i+1),
					Summary:   "Seeded by contentcache seed",
					Body:      "Lorem ipsum dolor sit amet.",
					Quiz:      []contentcache.QuizQuestion{{Question: "2 + 2?", Options: []string{"3", "4"}, Answer: 1}},
					CreatedAt: now.Add(time.Duration(i-n) * time.Second),
				})
				if err != nil {
					return err
				}
				app.log.Debug("seeded", zap.String("id", it.ID))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d items\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 10, "number of items")
	return cmd
}
