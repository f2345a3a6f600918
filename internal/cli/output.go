package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/joshu-sajeev/queuectl/internal/models"
)

func (a *app) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

// table writes tab separated rows aligned into columns.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func (a *app) printJobs(jobs []models.Job) error {
	if a.jsonOut {
		return a.printJSON(jobs)
	}
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(a.out, "no jobs")
		return err
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			string(j.State),
			fmt.Sprintf("%d/%d", j.Attempts, j.MaxRetries),
			formatTime(j.NextEligibleAt),
			truncate(j.Command, 40),
			truncate(j.LastError, 40),
		})
	}
	return table(a.out, []string{"ID", "STATE", "ATTEMPTS", "NEXT RUN", "COMMAND", "LAST ERROR"}, rows)
}

func (a *app) printJob(j *models.Job) error {
	if a.jsonOut {
		return a.printJSON(j)
	}

	exit := "-"
	if j.ExitCode != nil {
		exit = fmt.Sprint(*j.ExitCode)
	}

	rows := [][]string{
		{"id", j.ID},
		{"command", j.Command},
		{"state", string(j.State)},
		{"attempts", fmt.Sprintf("%d of %d retries", j.Attempts, j.MaxRetries)},
		{"backoff base", j.BackoffBase.String()},
		{"next run", formatTime(j.NextEligibleAt)},
		{"claimed by", orDash(j.ClaimedBy)},
		{"exit code", exit},
		{"last error", orDash(j.LastError)},
		{"created", formatTime(j.CreatedAt)},
		{"updated", formatTime(j.UpdatedAt)},
	}
	if err := table(a.out, []string{"FIELD", "VALUE"}, rows); err != nil {
		return err
	}

	for _, stream := range []struct{ name, text string }{{"stdout", j.Stdout}, {"stderr", j.Stderr}} {
		if stream.text == "" {
			continue
		}
		fmt.Fprintf(a.out, "\n--- %s ---\n%s", stream.name, stream.text)
		if !strings.HasSuffix(stream.text, "\n") {
			fmt.Fprintln(a.out)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to at most n runes for a table cell.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
