package alert

import (
	"fmt"
	"html"
	"strings"
)

// Render builds the HTML message for a. It is used both as photo caption and as plain text.
func Render(a Alert) string {
	p := a.Player
	name := html.EscapeString(p.Name)
	var b strings.Builder

	fmt.Fprintf(&b, "⚾ <b>%s HOME RUN!</b> ⚾\n", strings.ToUpper(name))
	d := a.Detail
	switch {
	case a.Delta > 1:
		fmt.Fprintf(&b, "%s just hit %d home runs!\n", name, a.Delta)
	case d.Category == "grand slam":
		fmt.Fprintf(&b, "%s just hit a grand slam!\n", name)
	case d.Category != "":
		fmt.Fprintf(&b, "%s just hit a %s home run!\n", name, html.EscapeString(d.Category))
	default:
		fmt.Fprintf(&b, "%s just hit a home run!\n", name)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "<b>Season total:</b> %d HR\n", a.Total)
	if d.Distance.Valid {
		fmt.Fprintf(&b, "<b>Distance:</b> %d ft\n", d.Distance.Value)
	} else {
		b.WriteString("<b>Distance:</b> not available\n")
	}
	if d.RBI > 0 {
		fmt.Fprintf(&b, "<b>RBI:</b> %d\n", d.RBI)
	}
	b.WriteString("<b>Player:</b> " + playerLine(p) + "\n")
	if game := gameLine(a); game != "" {
		b.WriteString(game + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func playerLine(p Player) string {
	out := html.EscapeString(p.Name)
	var extra []string
	if p.Number != "" {
		extra = append(extra, "#"+html.EscapeString(p.Number))
	}
	if p.Team != "" {
		extra = append(extra, html.EscapeString(p.Team))
	}
	if len(extra) > 0 {
		out += " (" + strings.Join(extra, ", ") + ")"
	}
	return out
}

func gameLine(a Alert) string {
	d := a.Detail
	var parts []string
	if d.Opponent != "" {
		parts = append(parts, "vs "+html.EscapeString(d.Opponent))
	}
	if !d.GameDate.IsZero() {
		parts = append(parts, d.GameDate.Format("2006-01-02"))
	}
	if len(parts) == 0 {
		return ""
	}
	return "<i>" + strings.Join(parts, " · ") + "</i>"
}
