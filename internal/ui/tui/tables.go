package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/rollout"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func stateStyle(s cluster.HostState) lipgloss.Style {
	switch s {
	case cluster.StateUp:
		return readyStyle
	case cluster.StateMaintenance, cluster.StatePreparingForMaintenance, cluster.StateRebooting:
		return warningStyle
	default:
		return failedStyle
	}
}

// RenderInventory writes one section per datacenter with a row per host.
func RenderInventory(w io.Writer, snapshot []cluster.Datacenter) error {
	var b strings.Builder
	if len(snapshot) == 0 {
		b.WriteString(dimStyle.Render("no datacenters visible") + "\n")
	}
	for _, dc := range snapshot {
		title := fmt.Sprintf("Datacenter %s", dc.Name)
		if dc.Status != "" {
			title += " (" + dc.Status + ")"
		}
		b.WriteString(sectionStyle.Render(title) + "\n")

		t := newTable("CLUSTER", "HOST", "STATE", "OS", "VMS")
		rows := 0
		for _, c := range dc.Clusters {
			name := c.Name
			if c.Status != "" {
				name += " (" + c.Status + ")"
			}
			if len(c.Hosts) == 0 {
				t.Row(name, dimStyle.Render("-"), "", "", "")
				rows++
				continue
			}
			for _, h := range c.Hosts {
				t.Row(name, h.Name, stateStyle(h.State).Render(h.StateName()), osLabel(h), strconv.Itoa(h.ActiveVMs))
				rows++
			}
		}
		if rows == 0 {
			b.WriteString(dimStyle.Render("  no clusters") + "\n")
			continue
		}
		b.WriteString(t.String() + "\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d clusters, %d hosts", len(dc.Clusters), dc.HostCount())) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func osLabel(h cluster.Host) string {
	switch {
	case h.OSType == "":
		return dimStyle.Render("unknown")
	case h.OSVersion == "":
		return h.OSType
	default:
		return h.OSType + " " + h.OSVersion
	}
}

// RenderPlan writes the processing order and the hosts left out.
func RenderPlan(w io.Writer, plan []cluster.Host, excluded []cluster.Exclusion) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Rollout plan: %d hosts", len(plan))) + "\n")

	if len(plan) > 0 {
		t := newTable("#", "HOST", "CLUSTER", "DATACENTER", "VMS")
		for i, h := range plan {
			t.Row(strconv.Itoa(i+1), h.Name, h.Cluster, h.Datacenter, strconv.Itoa(h.ActiveVMs))
		}
		b.WriteString(t.String() + "\n")
	}

	if len(excluded) > 0 {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Skipped: %d hosts", len(excluded))) + "\n")
		t := newTable("HOST", "REASON")
		for _, ex := range excluded {
			t.Row(ex.Host.Name, ex.Reason)
		}
		b.WriteString(t.String() + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func outcomeLabel(o rollout.Outcome) string {
	switch {
	case o.NeedsAttention:
		return failedStyle.Render(crossMark + " " + o.Kind.String())
	case o.Kind == rollout.Failed:
		return failedStyle.Render(crossMark + " failed")
	case o.Kind == rollout.Skipped:
		return dimStyle.Render(pending + " skipped")
	case o.Kind == rollout.Updated:
		return readyStyle.Render(checkMark + " updated")
	default:
		return readyStyle.Render(checkMark + " no updates")
	}
}

// RenderReport writes the per-host outcomes, a summary line and the hosts
// that need manual attention.
func RenderReport(w io.Writer, r *rollout.Report) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Rollout report") + "\n")

	t := newTable("HOST", "VMS", "OUTCOME", "STATE", "TIME", "DETAIL")
	for _, o := range r.Outcomes {
		t.Row(o.Host, strconv.Itoa(o.ActiveVMs), outcomeLabel(o), o.LastState, formatDuration(o.Duration), o.Reason)
	}
	b.WriteString(t.String() + "\n")

	summary := fmt.Sprintf("%d updated, %d without updates, %d failed, %d skipped in %s",
		r.Count(rollout.Updated), r.Count(rollout.NoUpdatesAvailable),
		r.Count(rollout.Failed), r.Count(rollout.Skipped),
		formatDuration(r.Finished.Sub(r.Started)))
	b.WriteString(footerStyle.Render(summary) + "\n")

	if r.Aborted {
		b.WriteString(warningStyle.Render(warnMark+" rollout aborted by operator") + "\n")
	}
	for _, o := range r.NeedAttention() {
		b.WriteString(failedStyle.Render(fmt.Sprintf("%s %s needs manual attention: left %s", crossMark, o.Host, o.LastState)) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	if d < time.Hour {
		return d.String()
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
