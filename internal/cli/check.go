package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"docnum/internal/core/numerator"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Workers int
	Calls   int
}

// CheckReport summarizes a concurrent allocation run.
type CheckReport struct {
	DocumentType string  `json:"documentType"`
	Workers      int     `json:"workers"`
	Calls        int     `json:"calls"`
	First        int64   `json:"first"`
	Last         int64   `json:"last"`
	Duplicates   []int64 `json:"duplicates,omitempty"`
	Gaps         int64   `json:"gaps"`
	ElapsedMs    int64   `json:"elapsedMs"`
	OK           bool    `json:"ok"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <document-type>",
		Short: "Allocate concurrently and verify numbers are distinct and contiguous",
		Long: `Run --calls allocations from --workers concurrent callers against the
configured store and verify that every returned number is distinct and that
together they form one contiguous range.

Gaps are reported when other clients allocate from the same sequence during
the run. The allocated numbers are consumed.

Example:
  numctl check quotation --workers 16 --calls 1000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 8, "concurrent callers")
	cmd.Flags().IntVarP(&opts.Calls, "calls", "c", 100, "total allocations")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions, raw string) error {
	t, err := parseType(raw)
	if err != nil {
		return err
	}
	if opts.Workers < 1 || opts.Calls < 1 {
		return NewExitError(ExitCommandError, "--workers and --calls must be positive")
	}

	s, err := opts.start(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	start := time.Now()
	p := pool.NewWithResults[int64]().
		WithContext(s.ctx).
		WithMaxGoroutines(opts.Workers).
		WithCancelOnError()
	for i := 0; i < opts.Calls; i++ {
		p.Go(func(ctx context.Context) (int64, error) {
			return s.service.Allocate(ctx, t)
		})
	}
	nums, err := p.Wait()
	if err != nil {
		return err
	}

	report := verify(t, nums)
	report.Workers = opts.Workers
	report.Calls = opts.Calls
	report.ElapsedMs = time.Since(start).Milliseconds()

	if err := s.out.Success(report, func(w io.Writer) { printReport(w, report) }); err != nil {
		return err
	}
	if !report.OK {
		return NewExitError(ExitFailure, fmt.Sprintf("check failed for %s", t))
	}
	return nil
}

// verify checks nums for duplicates and gaps. nums is sorted in place.
func verify(t numerator.DocumentType, nums []int64) CheckReport {
	report := CheckReport{DocumentType: t.String()}
	if len(nums) == 0 {
		return report
	}

	slices.Sort(nums)
	report.First, report.Last = nums[0], nums[len(nums)-1]

	for i := 1; i < len(nums); i++ {
		switch d := nums[i] - nums[i-1]; {
		case d == 0:
			if len(report.Duplicates) == 0 || report.Duplicates[len(report.Duplicates)-1] != nums[i] {
				report.Duplicates = append(report.Duplicates, nums[i])
			}
		case d > 1:
			report.Gaps += d - 1
		}
	}
	report.OK = len(report.Duplicates) == 0 && report.Gaps == 0
	return report
}

func printReport(w io.Writer, r CheckReport) {
	fmt.Fprintf(w, "document type: %s\n", r.DocumentType)
	fmt.Fprintf(w, "allocations:   %d (%d workers, %dms)\n", r.Calls, r.Workers, r.ElapsedMs)
	fmt.Fprintf(w, "range:         %d..%d\n", r.First, r.Last)
	fmt.Fprintf(w, "duplicates:    %d\n", len(r.Duplicates))
	fmt.Fprintf(w, "gaps:          %d\n", r.Gaps)
	if r.OK {
		fmt.Fprintln(w, "result:        OK")
	} else {
		fmt.Fprintln(w, "result:        FAILED")
	}
}
