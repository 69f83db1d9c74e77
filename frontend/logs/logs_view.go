package logs

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

// LogsPage renders the log table. Values are escaped before writing.
func LogsPage(entries []LogView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!doctype html><html><head><meta charset="utf-8"><title>Logs</title></head><body><h1>Logs</h1>`); err != nil {
			return err
		}
		if len(entries) == 0 {
			if _, err := io.WriteString(w, `<p>No log entries.</p>`); err != nil {
				return err
			}
		} else {
			if _, err := io.WriteString(w, `<table><thead><tr><th>Time</th><th>Action</th><th>Item</th><th>User</th><th>Details</th></tr></thead><tbody>`); err != nil {
				return err
			}
			for _, e := range entries {
				item := ""
				if e.ItemName != nil {
					item = *e.ItemName
				}
				if _, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td><pre>%s</pre></td></tr>`,
					html.EscapeString(e.Timestamp),
					html.EscapeString(e.Action),
					html.EscapeString(item),
					html.EscapeString(e.User),
					html.EscapeString(e.Details),
				); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</tbody></table>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
