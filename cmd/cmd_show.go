// cmd_show.go - Show Command und Varianten-Info Anzeige
// Hauptfunktionen: ShowHandler, showInfo, showVariants
package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fluxserve/fluxserve/predictor"
)

// ShowHandler - Zeigt die Inputs einer Variante oder alle Varianten an
func ShowHandler(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return showVariants(cmd.OutOrStdout())
	}

	p, err := predictor.Lookup(args[0])
	if err != nil {
		return err
	}
	return showInfo(p.Name(), p.Fields(), cmd.OutOrStdout())
}

// newTable - Tabelle im Stil von `show`
func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	return table
}

// showVariants - Gibt die registrierten Varianten aus
func showVariants(w io.Writer) error {
	fmt.Fprintln(w, " ", "Models")
	table := newTable(w)
	for _, name := range predictor.Names() {
		p, err := predictor.Lookup(name)
		if err != nil {
			return err
		}
		table.Append([]string{"", name, strconv.Itoa(len(p.Fields())) + " inputs"})
	}
	table.Render()
	fmt.Fprintln(w)
	return nil
}

// showInfo - Gibt die Inputs einer Variante aus
func showInfo(name string, fields []predictor.Field, w io.Writer) error {
	fmt.Fprintln(w, " ", name)
	table := newTable(w)
	for _, f := range fields {
		table.Append([]string{"", f.Name, f.Type, defaultString(f), constraint(f)})
	}
	table.Render()
	fmt.Fprintln(w)
	return nil
}

func defaultString(f predictor.Field) string {
	switch {
	case f.Required:
		return "(required)"
	case f.Default == nil:
		return ""
	default:
		return fmt.Sprintf("%v", f.Default)
	}
}

// constraint - Choices oder Wertebereich eines Feldes
func constraint(f predictor.Field) string {
	if len(f.Choices) > 0 {
		return strings.Join(f.Choices, " | ")
	}

	format := func(v *float64) string {
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	switch {
	case f.Minimum != nil && f.Maximum != nil:
		return fmt.Sprintf("%s..%s", format(f.Minimum), format(f.Maximum))
	case f.Minimum != nil:
		return ">= " + format(f.Minimum)
	case f.Maximum != nil:
		return "<= " + format(f.Maximum)
	}
	return ""
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [MODEL]",
		Short: "Show the inputs of a model variant",
		Args:  cobra.MaximumNArgs(1),
		RunE:  ShowHandler,
	}
}
