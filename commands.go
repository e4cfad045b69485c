package main

import (
	"fmt"
	"log/slog"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ossyrian/mpak/internal/extract"
)

func (a *app) lsCmd() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls <archive>",
		Short: "List the contents of an Mpak file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			names := archive.FileNames()
			slices.Sort(names)

			out := cmd.OutOrStdout()
			if !long {
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "SIZE\tCOMPRESSED\tOFFSET\tMODIFIED\tNAME\t")
			for _, name := range names {
				fi, _ := archive.Entry(name)
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t\n",
					fi.DecompressedSize,
					fi.CompressedSize,
					archive.Offset(fi),
					time.Unix(int64(fi.Timestamp), 0).UTC().Format(time.DateTime),
					name,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "show sizes, payload offsets and timestamps")
	return cmd
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <archive> <name>...",
		Short: "Copy contents to stdout",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			missing, err := extract.Cat(cmd.OutOrStdout(), archive, args[1:])
			for _, name := range missing {
				fmt.Fprintf(cmd.ErrOrStderr(), "File %s Not Found\n", name)
			}
			return err
		},
	}
}

func (a *app) unzipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unzip <archive> [dir]",
		Short: "Unzip contents to files (dir defaults to the archive name)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			dir := ""
			if len(args) > 1 {
				dir = args[1]
			}

			opts := []extract.Option{
				extract.WithWorkers(a.cfg.Workers),
				extract.WithOverwrite(a.cfg.Overwrite),
				extract.WithLogger(slog.Default()),
			}

			var bar *progressbar.ProgressBar
			if !a.cfg.NoProgress {
				bar = progressbar.NewOptions64(extract.TotalSize(archive),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription(fmt.Sprintf("Extracting %d files", archive.Len())),
					progressbar.OptionShowBytes(true),
					progressbar.OptionThrottle(65*time.Millisecond),
					progressbar.OptionFullWidth(),
					progressbar.OptionClearOnFinish(),
				)
				opts = append(opts, extract.WithProgress(func(_ string, n int64) {
					bar.Add64(n)
				}))
			}

			stats, err := extract.New(afero.NewOsFs(), opts...).ExtractAll(cmd.Context(), archive, dir)
			if bar != nil {
				bar.Finish()
			}
			if err != nil {
				return err
			}

			slog.Info("extraction finished",
				"files", stats.Files,
				"skipped", stats.Skipped,
				"bytes", stats.Bytes,
			)
			if stats.Skipped > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %d existing files (use --overwrite to replace them)\n", stats.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().IntP("workers", "j", 0, "number of files to extract concurrently (0 = one per CPU)")
	cmd.Flags().Bool("overwrite", false, "replace files that already exist")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")

	a.v.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	a.v.BindPFlag("overwrite", cmd.Flags().Lookup("overwrite"))
	a.v.BindPFlag("no_progress", cmd.Flags().Lookup("no-progress"))

	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <archive>",
		Short: "Verify stored CRC32 checksums and sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			out := cmd.OutOrStdout()
			failed := 0

			if !archive.DirectoryCRCMatch() {
				fmt.Fprintln(out, "directory: crc32 mismatch")
				failed++
			}

			results, err := archive.VerifyAll()
			if err != nil {
				return err
			}
			for _, res := range results {
				if !res.CRCMatch() {
					fmt.Fprintf(out, "%s: crc32 %08x, want %08x\n", res.Name, res.ActualCRC, res.ExpectedCRC)
				}
				if !res.SizeMatch() {
					fmt.Fprintf(out, "%s: size %d, want %d\n", res.Name, res.ActualSize, res.ExpectedSize)
				}
				if !res.OK() {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results)+1)
			}
			fmt.Fprintf(out, "%d files OK\n", len(results))
			return nil
		},
	}
}

func (a *app) sumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sum <archive> [name...]",
		Short: "Print content digests of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			sums, err := extract.Digests(archive, args[1:])
			for _, s := range sums {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", s.Digest, s.Name)
			}
			return err
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <archive>",
		Short: "Show the archive name and header fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			h := archive.Header()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name: %s\n", archive.Name())
			fmt.Fprintf(out, "Files: %d (header says %d)\n", archive.Len(), h.FileCount)
			fmt.Fprintf(out, "Directory: %d bytes compressed, crc32 %08x\n", h.DirCompressedSize, h.DirCRC32)
			fmt.Fprintf(out, "Name blob: %d bytes compressed\n", h.NameCompressedSize)
			fmt.Fprintf(out, "Data offset: %d\n", h.DataOffset())
			return nil
		},
	}
}
