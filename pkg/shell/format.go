package shell

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/harun/nodeshell/pkg/content"
)

func newTabWriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

// writeListing prints children (suffixed with /) followed by properties
func writeListing(out io.Writer, node *content.Node) error {
	w := newTabWriter(out)
	for _, child := range node.Children {
		fmt.Fprintf(w, "%s/\n", child)
	}
	for i := range node.Properties {
		prop := &node.Properties[i]
		fmt.Fprintf(w, "%s\t%s\t%s\n", prop.Name, prop.Type, prop.String())
	}
	return w.Flush()
}

func writeInfo(out io.Writer, node *content.Node, writable bool) error {
	return writeFields(out, [][2]string{
		{"Path", node.Path},
		{"Identifier", node.Identifier},
		{"Type", node.PrimaryType},
		{"Children", strconv.Itoa(len(node.Children))},
		{"Properties", strconv.Itoa(len(node.Properties))},
		{"Writable", yesNo(writable)},
	})
}

func writeFields(out io.Writer, rows [][2]string) error {
	w := newTabWriter(out)
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
