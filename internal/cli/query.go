package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/valentindosimont/keyquery/internal/export"
	"github.com/valentindosimont/keyquery/internal/lookup"
	"github.com/valentindosimont/keyquery/internal/present"
	"github.com/valentindosimont/keyquery/internal/token"
)

var errNoBalance = errors.New("no balance to copy, lookup.show_balance is off or the token was not recognised")

func newQueryCmd(configPath *string) *cobra.Command {
	var (
		csvPath string
		copyOut bool
	)

	cmd := &cobra.Command{
		Use:   "query [token|-]",
		Short: "Run one lookup and print the result",
		Long: "Look up a token once and print its balance, totals and usage records.\n" +
			"Pass - or no argument to read the token from stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readToken(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Lookup(cmd.Context(), input)
			switch {
			case errors.Is(err, token.ErrEmpty), errors.Is(err, token.ErrMalformed):
				return err
			case err != nil:
				return lookup.ErrFetchFailed
			}

			out := cmd.OutOrStdout()
			p := a.Presenter()
			cfg := a.Config()

			if cfg.Lookup.ShowBalance {
				printBalance(out, p.Balance(st))
			}
			if cfg.Lookup.ShowDetail {
				printRecords(out, p, st)
			}

			if csvPath != "" {
				if len(st.Rows) == 0 {
					return errors.New("no usage records to export")
				}
				data, err := export.CSV(st.Rows, p.FormatTime)
				if err != nil {
					return err
				}
				dir, name := splitPath(csvPath)
				path, err := export.WriteFile(dir, name, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nWrote %s (%s)\n", path, humanize.Bytes(uint64(len(data))))
			}

			if copyOut {
				if !cfg.Lookup.ShowBalance || !st.TokenValid {
					return errNoBalance
				}
				text := p.Balance(st).CopyText()
				var copyErr *export.CopyError
				if err := export.Copy(a.Clipboard(), text); errors.As(err, &copyErr) {
					fmt.Fprintf(cmd.ErrOrStderr(), "clipboard unavailable (%v), copy manually:\n%s\n", copyErr.Err, copyErr.Text)
				} else {
					fmt.Fprintln(out, "\nBalance copied to clipboard")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Write usage records to this CSV file")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "Copy the balance summary to the clipboard")

	return cmd
}

// readToken takes the token from args, or the first stdin line for "-" or no args
func readToken(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printBalance(w io.Writer, b present.Balance) {
	label := lipgloss.NewStyle().Width(13)
	for _, l := range b.Lines() {
		fmt.Fprintln(w, label.Render(l[0])+l[1])
	}
}

func printRecords(w io.Writer, p *present.Presenter, st lookup.State) {
	fmt.Fprintln(w)
	if st.LogFailed {
		reason := st.LogFailure
		if reason == "" {
			reason = "no reason given"
		}
		fmt.Fprintf(w, "Usage records unavailable: %s\n", reason)
		return
	}
	fmt.Fprintln(w, p.TotalsLine(st.Totals))
	if len(st.Rows) == 0 {
		fmt.Fprintln(w, "No usage records")
		return
	}

	cols := p.Columns()
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Title
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle()
			if row < 0 || row >= len(st.Rows) || cols[col].Tier == nil {
				return style
			}
			return style.Foreground(tierColor(cols[col].Tier(st.Rows[row])))
		})
	for _, r := range st.Rows {
		t.Row(p.Cells(r)...)
	}
	fmt.Fprintln(w, t.String())
}

func tierColor(t present.Tier) lipgloss.Color {
	switch t {
	case present.TierFast:
		return lipgloss.Color("#44FF44")
	case present.TierMedium:
		return lipgloss.Color("#FFA500")
	default:
		return lipgloss.Color("#FF4444")
	}
}

func splitPath(path string) (dir, name string) {
	i := strings.LastIndexAny(path, `/\`)
	if i < 0 {
		return ".", path
	}
	return path[:i+1], path[i+1:]
}
