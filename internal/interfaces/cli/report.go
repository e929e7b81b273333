package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/reporting"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

const dateLayout = "2006-01-02"

// TreeView renders a report tree for every output format.
type TreeView struct {
	Tree  *reporting.Tree
	Delay bool
}

func (v TreeView) MarshalJSON() ([]byte, error) { return json.Marshal(v.Tree) }

func (v TreeView) String() string {
	kind := "completion report"
	if v.Delay {
		kind = "TAT delay report"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d case(s) across %d customer(s), generated %s\n",
		kind, v.Tree.CaseCount(), len(v.Tree.Customers), v.Tree.GeneratedAt.Format(time.RFC3339))
	for _, c := range v.Tree.Customers {
		fmt.Fprintf(&sb, "%s (%s)\n", c.Name, c.UniqueID)
		for _, b := range c.Branches {
			fmt.Fprintf(&sb, "  %s: %d case(s)\n", b.Name, len(b.Cases))
		}
	}
	if len(v.Tree.Holidays) > 0 {
		fmt.Fprintf(&sb, "%d holiday(s) in the calendar\n", len(v.Tree.Holidays))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (v TreeView) TableHeaders() []string {
	if v.Delay {
		return []string{"CUSTOMER", "BRANCH", "CASE", "APPLICATION", "CREATED", "DUE", "DAYS OUT"}
	}
	return []string{"CUSTOMER", "BRANCH", "CASE", "APPLICATION", "STATUS", "SERVICES"}
}

func (v TreeView) TableRows() [][]string {
	var rows [][]string
	for _, c := range v.Tree.Customers {
		for _, b := range c.Branches {
			for _, e := range b.Cases {
				row := []string{c.Name, b.Name, fmt.Sprint(e.ID), e.ApplicationID}
				if v.Delay {
					due := ""
					if e.DueDate != nil {
						due = e.DueDate.Format(dateLayout)
					}
					row = append(row, e.CreatedAt.Format(dateLayout), due, fmt.Sprint(e.DaysOutOfTAT))
				} else {
					row = append(row, e.OverallStatus, servicesSummary(e))
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func servicesSummary(e *reporting.CaseEntry) string {
	headings := make([]string, 0, len(e.ServicesStatus))
	for h := range e.ServicesStatus {
		headings = append(headings, h)
	}
	sort.Strings(headings)

	parts := make([]string, 0, len(headings))
	for _, h := range headings {
		status := "-"
		if s := e.ServicesStatus[h]; s != nil {
			status = *s
		}
		parts = append(parts, h+"="+status)
	}
	if e.Error != "" {
		parts = append(parts, "error: "+e.Error)
	}
	return strings.Join(parts, ", ")
}

// NewReportCmd builds the case report commands.
func NewReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Build case reports",
		Long:  "Build the case completion status report or the TAT delay report from the live database.",
	}

	var mode string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Per-service completion status of every qualifying case",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := reporting.ParseMode(mode)
			if err != nil {
				return err
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend, log logging.Logger) error {
				tree, err := b.Status.Build(ctx, m)
				if err != nil {
					return err
				}
				log.Info("completion report built", logging.String("mode", string(m)), logging.Int("cases", tree.CaseCount()))
				return PrintResult(cmd, TreeView{Tree: tree})
			})
		},
	}
	statusCmd.Flags().StringVar(&mode, "mode", string(reporting.ModePending), "pending|prepared")

	var asOf string
	tatCmd := &cobra.Command{
		Use:   "tat",
		Short: "Cases past their turnaround time",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if asOf != "" {
				t, err := time.Parse(time.RFC3339, asOf)
				if err != nil {
					return errors.InvalidParam("--as-of must be RFC3339").WithDetail(asOf)
				}
				now = t
			}
			return withBackend(cmd, func(ctx context.Context, b *Backend, log logging.Logger) error {
				tree, err := b.Delay.Build(ctx, now)
				if err != nil {
					return err
				}
				log.Info("delay report built", logging.Time("as_of", now), logging.Int("cases", tree.CaseCount()))
				return PrintResult(cmd, TreeView{Tree: tree, Delay: true})
			})
		},
	}
	tatCmd.Flags().StringVar(&asOf, "as-of", "", "evaluate as of this RFC3339 instant instead of now")

	reportCmd.AddCommand(statusCmd, tatCmd)
	return reportCmd
}

// withBackend opens the backend under the command timeout and closes it
// after fn returns.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *Backend, log logging.Logger) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if cliCtx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliCtx.Timeout)
		defer cancel()
	}

	open := cliCtx.Deps.OpenBackend
	if open == nil {
		open = openBackend
	}
	b, err := open(ctx, cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if b.Close == nil {
			return
		}
		if cerr := b.Close(); cerr != nil {
			cliCtx.Logger.Warn("backend close failed", logging.Err(cerr))
		}
	}()
	return fn(ctx, b, cliCtx.Logger)
}
