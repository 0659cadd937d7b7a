package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docnum/internal/core/apperror"
	"docnum/internal/core/numerator"
	"docnum/internal/infrastructure/http/v1/dto"
)

func parseType(raw string) (numerator.DocumentType, error) {
	t, err := numerator.ParseDocumentType(raw)
	if err != nil {
		return "", apperror.NewInvalidDocumentType(raw, err)
	}
	return t, nil
}

// NextOptions holds flags for the next command.
type NextOptions struct {
	*RootOptions
	Count int
}

// NewNextCommand creates the next command.
func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NextOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "next <document-type>",
		Short: "Allocate the next number (or a block of numbers)",
		Long: `Allocate the next number of a document sequence.

Every call consumes numbers; there is no way to give them back.

Example:
  numctl next invoice
  numctl next quotation --count 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNext(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of contiguous numbers to allocate")

	return cmd
}

func runNext(cmd *cobra.Command, opts *NextOptions, raw string) error {
	t, err := parseType(raw)
	if err != nil {
		return err
	}

	s, err := opts.start(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.Count == 1 {
		num, err := s.service.Next(s.ctx, t)
		if err != nil {
			return err
		}
		return s.out.Success(dto.FromNumber(num), func(w io.Writer) {
			fmt.Fprintln(w, num.Formatted)
		})
	}

	nums, err := s.service.AllocateN(s.ctx, t, opts.Count)
	if err != nil {
		return err
	}
	resp := dto.NewBatchResponse(t, nums)
	return s.out.Success(resp, func(w io.Writer) {
		f := s.service.Format(t)
		at := s.service.Now()
		for _, n := range nums {
			fmt.Fprintln(w, numerator.FormatNumber(f, at, n))
		}
	})
}

// NewCurrentCommand creates the current command.
func NewCurrentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "current <document-type>",
		Short: "Show the last issued number without allocating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseType(args[0])
			if err != nil {
				return err
			}

			s, err := opts.start(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			cur, err := s.service.Current(s.ctx, t)
			if err != nil {
				return err
			}
			return s.out.Success(dto.SequenceResponse{DocumentType: t.String(), LastIssued: cur}, func(w io.Writer) {
				fmt.Fprintln(w, cur)
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all persisted sequences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.start(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			counters, err := s.service.Counters(s.ctx)
			if err != nil {
				return err
			}

			items := make([]dto.SequenceResponse, 0, len(counters))
			for _, c := range counters {
				items = append(items, dto.FromCounter(c))
			}
			return s.out.Success(dto.NewListResponse(items), func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DOCUMENT TYPE\tLAST ISSUED\tUPDATED")
				for _, c := range counters {
					updated := "-"
					if !c.UpdatedAt.IsZero() {
						updated = c.UpdatedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\n", c.DocumentType, c.LastIssued, updated)
				}
				_ = tw.Flush()
			})
		},
	}
}

// NewRebaseCommand creates the rebase command.
func NewRebaseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebase <document-type> <floor>",
		Short: "Raise a sequence so the next number is above floor",
		Long: `Raise a sequence to at least floor, e.g. after importing documents
numbered by another system. A sequence is never lowered.

Example:
  numctl rebase invoice 12000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseType(args[0])
			if err != nil {
				return err
			}
			floor, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return apperror.NewValidation("floor must be an integer").WithDetail("floor", args[1])
			}

			s, err := opts.start(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			cur, err := s.service.Rebase(s.ctx, t, floor)
			if err != nil {
				return err
			}
			return s.out.Success(dto.SequenceResponse{DocumentType: t.String(), LastIssued: cur}, func(w io.Writer) {
				fmt.Fprintf(w, "%s last issued: %d\n", t, cur)
			})
		},
	}
}

// NewTypesCommand creates the types command.
func NewTypesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List recognized document types and their display formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.start(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			types := numerator.DocumentTypes()
			items := make([]dto.DocumentTypeResponse, 0, len(types))
			for _, t := range types {
				f := s.service.Format(t)
				items = append(items, dto.DocumentTypeResponse{
					DocumentType: t.String(),
					Prefix:       f.Prefix,
					IncludeYear:  f.IncludeYear,
					PadWidth:     f.PadWidth,
				})
			}
			return s.out.Success(dto.NewListResponse(items), func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DOCUMENT TYPE\tPREFIX\tEXAMPLE")
				at := s.service.Now()
				for _, t := range types {
					f := s.service.Format(t)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", t, f.Prefix, numerator.FormatNumber(f, at, 1))
				}
				_ = tw.Flush()
			})
		},
	}
}

// joinTypes renders the recognized types for help text.
func joinTypes() string {
	types := numerator.DocumentTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}
