package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printView writes v as indented JSON or as an aligned field list that
// omits empty values.
func printView(w io.Writer, jsonMode bool, v *types.View) error {
	if jsonMode {
		return printJSON(w, v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", label, value)
		}
	}
	field("ID", v.ID)
	field("Name", v.Name)
	field("Kind", v.Kind)
	field("Email", v.Email)
	field("Phone", v.Phone)
	field("Address", joinNonEmpty(", ", v.Line1, v.Line2, v.City, v.Region, v.PostalCode, v.Country))
	field("Industry", v.Industry)
	field("Attributes", formatAttributes(v.Attributes))
	field("Secondary ID", v.SecondaryID)
	field("Created", formatTime(v.CreatedAt))
	field("Updated", formatTime(v.UpdatedAt))
	if v.ConvertedAt != nil {
		field("Converted", formatTime(*v.ConvertedAt))
	}
	return tw.Flush()
}

func printCheck(w io.Writer, check types.ConversionCheck) {
	if len(check.Blocking) == 0 && len(check.Warnings) == 0 {
		fmt.Fprintln(w, "Ready to convert")
		return
	}
	for _, msg := range check.Blocking {
		fmt.Fprintln(w, "blocking:", msg)
	}
	for _, msg := range check.Warnings {
		fmt.Fprintln(w, "warning:", msg)
	}
}

// printCounts writes per-table row counts in parent-first table order.
func printCounts(w io.Writer, jsonMode bool, verb string, counts map[string]int) error {
	if jsonMode {
		return printJSON(w, counts)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, table := range types.StandardTableNames {
		fmt.Fprintf(tw, "%s\t%d %s\n", table, counts[table], verb)
	}
	return tw.Flush()
}

func formatAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k != types.CategoryIndustry {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + attrs[k]
	}
	return strings.Join(parts, ", ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}

func joinNonEmpty(sep string, values ...string) string {
	kept := values[:0:0]
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, sep)
}
