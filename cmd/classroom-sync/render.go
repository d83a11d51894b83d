package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/worksmarter/internal/syncclient"
)

const recentMessages = 10

// render prints the seating chart followed by the caller's table thread
// and prompts.
func render(w io.Writer, v syncclient.View) {
	fmt.Fprintf(w, "\n== Classroom %s (seating v%d, %s) ==\n", v.ClassroomID, v.Version, v.FetchedAt.Local().Format("15:04:05"))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tTABLE\tID\tSEATED\tPROMPTS")
	for _, t := range v.Tables {
		marker := " "
		if v.MyTableID != nil && *v.MyTableID == t.ID {
			marker = "*"
		}
		names := make([]string, 0, len(t.Students))
		for _, s := range t.Students {
			names = append(names, s.FullName)
		}
		seated := strings.Join(names, ", ")
		if seated == "" {
			seated = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, t.Name, t.ID, seated, generationLabel(t))
	}
	_ = tw.Flush()

	if v.MyTableID == nil {
		fmt.Fprintln(w, "You are not seated. Use `classroom-sync seat --table <id>`.")
		return
	}
	mine := v.Table(*v.MyTableID)
	if mine == nil {
		return
	}

	fmt.Fprintf(w, "\n-- %s chat --\n", mine.Name)
	msgs := mine.Messages
	if len(msgs) > recentMessages {
		msgs = msgs[len(msgs)-recentMessages:]
	}
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderName, m.Content)
	}
	for _, p := range mine.Pending {
		fmt.Fprintf(w, "[sending] %s\n", p.Content)
	}
	if len(msgs) == 0 && len(mine.Pending) == 0 {
		fmt.Fprintln(w, "No messages yet.")
	}

	if v.Prompts == nil || v.Prompts.Run == nil {
		return
	}
	fmt.Fprintln(w, "\n-- Discussion prompts --")
	for _, p := range v.Prompts.Run.Prompts {
		check := "[ ]"
		if v.Discussed[p.ID] {
			check = "[x]"
		}
		fmt.Fprintf(w, "%s %d. %s (%s)\n", check, p.OrderIndex+1, p.Text, p.ID)
	}
}

func generationLabel(t syncclient.TableState) string {
	switch t.Generation {
	case syncclient.GenerationGenerating:
		return "generating..."
	case syncclient.GenerationFailed:
		return "failed: " + t.GenerationError
	case syncclient.GenerationSucceeded:
		return "ready"
	default:
		return ""
	}
}

func tableLabel(id *string) string {
	if id == nil || *id == "" {
		return "no table"
	}
	return *id
}

func tableName(v syncclient.View, id *string) string {
	if id == nil || *id == "" {
		return "no table"
	}
	if t := v.Table(*id); t != nil {
		return t.Name
	}
	return *id
}
