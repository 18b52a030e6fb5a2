package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Winstonlu01/Lunori/internal/draft"
	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/mcpserver"
	"github.com/Winstonlu01/Lunori/internal/remote"
)

const listTimeLayout = "2006-01-02 15:04"

func transcribeCommand(c *client) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe an audio file and keep it as a draft or save it as an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := remote.CheckAudioExtension(args[0]); err != nil {
				return err
			}
			res, err := c.remote.UploadFile(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s, %d bytes)\n\n%s\n", res.Filename, res.Language, res.SizeBytes, res.Transcript)

			d := draft.FromUpload(res)
			if save {
				id, err := c.cache.Save(ctx, d.SaveRequest())
				if id == "" {
					return err
				}
				fmt.Fprintf(out, "\nsaved entry %s\n", id)
				return err
			}

			drafts, err := c.openDrafts()
			if err != nil {
				return err
			}
			defer drafts.Close()
			if _, err := drafts.Put(d); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nkept as draft; open lunori to attach images and save")
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "save as a journal entry right away")
	return cmd
}

func draftsCommand(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "List transcripts that have not been saved as entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			drafts, err := c.openDrafts()
			if err != nil {
				return err
			}
			defer drafts.Close()
			list, err := drafts.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				_, err := fmt.Fprintln(out, "no drafts")
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUPDATED\tWORDS\tIMAGES\tSOURCE")
			for _, d := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					d.ID, d.UpdatedAt.Local().Format(listTimeLayout), d.Words, len(d.Images), d.Source)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "save ID",
		Short: "Save a draft as a journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drafts, err := c.openDrafts()
			if err != nil {
				return err
			}
			defer drafts.Close()
			d, err := drafts.Get(args[0])
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("no draft %q", args[0])
			}
			if err != nil {
				return err
			}
			id, err := c.cache.Save(cmd.Context(), d.SaveRequest())
			if id == "" {
				return err
			}
			if derr := drafts.Delete(d.ID); derr != nil {
				err = errors.Join(err, derr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved entry %s\n", id)
			return err
		},
	})
	return cmd
}

func entriesCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "entries",
		Short: "List journal entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cache.Refresh(cmd.Context()); err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), c.cache.Entries())
		},
	}
}

func showCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one entry with its transcript and images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.cache.Refresh(ctx); err != nil {
				return err
			}
			d, err := c.cache.Detail(ctx, args[0])
			if err != nil {
				return err
			}
			printDetail(cmd.OutOrStdout(), d, c.remote.AudioURL(d.AudioFilename))
			return nil
		},
	}
}

func searchCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "search TERMS...",
		Short: "List entries whose transcript or image tags contain every term",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.cache.Refresh(ctx); err != nil {
				return err
			}
			found, err := c.cache.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), found)
		},
	}
}

func statsCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the day streak, mood and this week's emotions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cache.Refresh(cmd.Context()); err != nil {
				return err
			}
			st := c.cache.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entries:  %d\n", st.Total)
			fmt.Fprintf(out, "streak:   %d days\n", st.Streak)
			if st.AverageMood != nil {
				fmt.Fprintf(out, "mood:     %+.1f\n", *st.AverageMood)
			}
			if ranked := st.Ranked(); len(ranked) > 0 {
				fmt.Fprintln(out, "this week:")
				for _, lc := range ranked {
					fmt.Fprintf(out, "  %-12s %d\n", lc.Label, lc.Count)
				}
			}
			return nil
		},
	}
}

func deleteCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cache.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func devicesCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devs, err := c.captureSource().Devices()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tNAME\tID\tDEFAULT")
			for _, d := range devs {
				def := ""
				if d.Default {
					def = "*"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.Index, d.Name, d.ID, def)
			}
			return w.Flush()
		},
	}
}

func modelCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:       "model [NAME]",
		Short:     "Show or change the backend's whisper model",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: remote.WhisperModels,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				name string
				err  error
			)
			if len(args) == 0 {
				name, err = c.remote.WhisperModel(ctx)
			} else {
				name, err = c.remote.SetWhisperModel(ctx, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func mcpCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve journal search and stats to MCP clients over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := warmCache(cmd.Context(), c); err != nil {
				c.log.Warn("initial refresh failed", "error", err)
			}
			return mcpserver.New(c.cache, version, c.log).ServeStdio()
		},
	}
}

func warmCache(ctx context.Context, c *client) error {
	if _, err := c.remote.Health(ctx); err != nil {
		return err
	}
	return c.cache.Refresh(ctx)
}

func printEntries(w io.Writer, list []journal.Entry) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no entries")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tWORDS\tMOOD\tEMOTION\tIMAGES")
	for _, e := range list {
		mood := "-"
		if e.Mood != nil {
			mood = fmt.Sprintf("%+d", *e.Mood)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\n",
			e.ID, e.CreatedAt.Local().Format(listTimeLayout), e.WordCount, mood, e.TopEmotion(), e.ImageCount)
	}
	return tw.Flush()
}

func printDetail(w io.Writer, d journal.EntryDetail, audioURL string) {
	fmt.Fprintf(w, "%s  %s\n", d.ID, d.CreatedAt.Local().Format(listTimeLayout))
	fmt.Fprintf(w, "words: %d", d.WordCount)
	if d.Mood != nil {
		fmt.Fprintf(w, "  mood: %+d", *d.Mood)
	}
	fmt.Fprintln(w)
	for _, e := range d.TopEmotions {
		fmt.Fprintf(w, "  %-12s %3.0f%%\n", e.Label, e.Score*100)
	}
	if audioURL != "" && d.AudioFilename != "" {
		fmt.Fprintf(w, "audio: %s\n", audioURL)
	}
	fmt.Fprintf(w, "\n%s\n", d.Transcript)
	for i, im := range d.Images {
		fmt.Fprintf(w, "\n[%d] %s", i+1, im.Filename)
		if im.Caption != "" {
			fmt.Fprintf(w, " - %s", im.Caption)
		}
		if len(im.Tags) > 0 {
			fmt.Fprintf(w, " (%s)", strings.Join(im.Tags, ", "))
		}
	}
	if len(d.Images) > 0 {
		fmt.Fprintln(w)
	}
}
