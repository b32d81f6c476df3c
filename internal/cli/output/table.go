package output

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

// TableFormatter formats data as an aligned text table.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format formats data as a table.
// Supports Table, lobbies, structs and string-keyed maps; anything else is
// printed as JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	var table *Table
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		table = v
	case Table:
		table = &v
	case *domain.Lobby:
		table = LobbyDetail(v)
	case []*domain.Lobby:
		table = LobbyList(v, f.Wide)
	default:
		t, ok := reflectTable(data)
		if !ok {
			return (&JSONFormatter{}).Format(w, data)
		}
		table = t
	}
	return table.RenderWithOptions(w, f.NoHeaders)
}

// LobbyList renders one row per lobby. Wide adds the code, region, server
// status and marker columns.
func LobbyList(lobbies []*domain.Lobby, wide bool) *Table {
	t := &Table{Headers: []string{"ID", "NAME", "STATUS", "PLAYERS", "HOST"}}
	if wide {
		t.Headers = append(t.Headers, "CODE", "REGION", "PRIVATE", "SERVER", "LAST_MODIFIED")
	}
	for _, l := range lobbies {
		if l == nil {
			continue
		}
		row := []string{l.ID, dash(l.Name), dash(string(l.Status)), playerCount(l), dash(l.Host)}
		if wide {
			row = append(row,
				dash(l.Code),
				dash(l.Region),
				strconv.FormatBool(l.IsPrivate),
				dash(string(l.ServerStatus())),
				dash(l.LastModified),
			)
		}
		t.AddRow(row...)
	}
	return t
}

// LobbyDetail renders a single lobby as field/value pairs.
func LobbyDetail(l *domain.Lobby) *Table {
	t := &Table{Headers: []string{"FIELD", "VALUE"}}
	if l == nil {
		return t
	}
	t.AddRow("ID", l.ID)
	t.AddRow("Name", dash(l.Name))
	t.AddRow("Code", dash(l.Code))
	t.AddRow("Status", dash(string(l.Status)))
	t.AddRow("Host", dash(l.Host))
	t.AddRow("Players", playerCount(l))
	t.AddRow("Roster", dash(strings.Join(l.Players, ", ")))
	t.AddRow("Private", strconv.FormatBool(l.IsPrivate))
	t.AddRow("Late Join", strconv.FormatBool(l.AllowLateJoin))
	t.AddRow("Region", dash(l.Region))
	t.AddRow("Last Modified", dash(l.LastModified))
	if l.ServerInfo != nil {
		t.AddRow("Server", dash(string(l.ServerInfo.Status)))
		for _, proto := range sortedKeys(l.ServerInfo.Endpoints) {
			ep := l.ServerInfo.Endpoints[proto]
			t.AddRow("Endpoint ("+proto+")", fmt.Sprintf("%s:%d", ep.Host, ep.Port))
		}
	}
	for _, k := range sortedKeys(l.Settings) {
		t.AddRow("Setting "+k, string(l.Settings[k]))
	}
	for _, p := range sortedKeys(l.PlayerState) {
		t.AddRow("State "+p, string(l.PlayerState[p]))
	}
	return t
}

func playerCount(l *domain.Lobby) string {
	if l.MaxPlayers > 0 {
		return fmt.Sprintf("%d/%d", len(l.Players), l.MaxPlayers)
	}
	return strconv.Itoa(len(l.Players))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// reflectTable turns a struct into field/value rows and a map into key/value
// rows, using json tag names where present.
func reflectTable(data any) (*Table, bool) {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return &Table{}, true
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := &Table{Headers: []string{"FIELD", "VALUE"}}
		typ := v.Type()
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag, _, _ := strings.Cut(field.Tag.Get("json"), ","); tag == "-" {
				continue
			} else if tag != "" {
				name = tag
			}
			t.AddRow(name, formatValue(v.Field(i)))
		}
		return t, true
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		t := &Table{Headers: []string{"KEY", "VALUE"}}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			t.AddRow(k.String(), formatValue(v.MapIndex(k)))
		}
		return t, true
	default:
		return nil, false
	}
}

// formatValue formats a reflect.Value for a table cell.
func formatValue(v reflect.Value) string {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return "-"
	}
	if raw, ok := v.Interface().(json.RawMessage); ok {
		return dash(string(raw))
	}

	switch v.Kind() {
	case reflect.String:
		return dash(v.String())
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		if v.Type().Elem().Kind() == reflect.String {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ", ")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table, optionally without the header row.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		if _, err := fmt.Fprintln(tw, strings.Join(t.Headers, "\t")); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
