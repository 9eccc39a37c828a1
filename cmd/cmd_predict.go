// cmd_predict.go - Predict Command und Bildanzeige im Terminal
// Hauptfunktionen: PredictHandler, parseInputs, displayImageInTerminal
package cmd

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fluxserve/fluxserve/api"
)

// parseInputs - Wandelt key=value Paare in eine Input-Map um
// Werte werden als JSON gelesen (Zahlen, Booleans), sonst als String
func parseInputs(pairs []string) (map[string]any, error) {
	input := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", pair)
		}

		input[key] = parseValue(raw)
	}
	return input, nil
}

// parseValue - Liest genau einen JSON-Wert, Zahlen bleiben als json.Number exakt
func parseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || v == nil {
		return raw
	}
	if _, err := dec.Token(); err != io.EOF {
		return raw
	}
	return v
}

// PredictHandler - Sendet eine Prediction an den laufenden Server
func PredictHandler(cmd *cobra.Command, args []string) error {
	pairs, err := cmd.Flags().GetStringArray("input")
	if err != nil {
		return err
	}
	display, err := cmd.Flags().GetBool("display")
	if err != nil {
		return err
	}
	id, err := cmd.Flags().GetString("id")
	if err != nil {
		return err
	}

	input, err := parseInputs(append(pairs, args...))
	if err != nil {
		return err
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	if err := client.Heartbeat(cmd.Context()); err != nil {
		return fmt.Errorf("fluxserve server not responding - %w", err)
	}

	resp, err := client.Predict(cmd.Context(), &api.PredictionRequest{ID: id, Input: input})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) && statusErr.ErrorMessage != "" {
			return errors.New(statusErr.ErrorMessage)
		}
		return err
	}

	printPrediction(cmd.OutOrStdout(), resp)

	if display && term.IsTerminal(int(os.Stdout.Fd())) {
		displayImageInTerminal(resp.Output)
	}
	return nil
}

// printPrediction - Gibt Ausgabepfad und Laufzeit aus
func printPrediction(w io.Writer, resp *api.PredictionResponse) {
	fmt.Fprintln(w, resp.Output)
	if resp.Metrics.PredictTime > 0 {
		fmt.Fprintf(w, "prediction %s took %.2fs\n", resp.ID, resp.Metrics.PredictTime)
	}
}

// displayImageInTerminal - Zeigt ein Bild inline in unterstuetzten Terminals an
func displayImageInTerminal(imagePath string) bool {
	termProgram := os.Getenv("TERM_PROGRAM")
	kittyWindowID := os.Getenv("KITTY_WINDOW_ID")
	weztermPane := os.Getenv("WEZTERM_PANE")
	ghostty := os.Getenv("GHOSTTY_RESOURCES_DIR")

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return false
	}

	encoded := base64.StdEncoding.EncodeToString(data)

	switch {
	case termProgram == "iTerm.app" || termProgram == "WezTerm" || weztermPane != "":
		// ESC ] 1337 ; File = [arguments] : base64 BEL
		fmt.Printf("\033]1337;File=inline=1;preserveAspectRatio=1:%s\a\n", encoded)
		return true

	case kittyWindowID != "" || ghostty != "" || termProgram == "ghostty":
		// Kitty graphics protocol kann nur PNG direkt uebertragen (f=100)
		if !strings.EqualFold(filepath.Ext(imagePath), ".png") {
			return false
		}
		const chunkSize = 4096
		for i := 0; i < len(encoded); i += chunkSize {
			end := min(i+chunkSize, len(encoded))
			more := 1
			if end >= len(encoded) {
				more = 0
			}
			if i == 0 {
				fmt.Printf("\033_Ga=T,f=100,m=%d;%s\033\\", more, encoded[i:end])
			} else {
				fmt.Printf("\033_Gm=%d;%s\033\\", more, encoded[i:end])
			}
		}
		fmt.Println()
		return true

	default:
		return false
	}
}

// newPredictCmd - Erstellt den predict Command
func newPredictCmd() *cobra.Command {
	predictCmd := &cobra.Command{
		Use:     "predict [key=value...]",
		Short:   "Run a prediction on a running server",
		Example: `  fluxserve predict -i prompt="a lighthouse at dusk" -i aspect_ratio=16:9 -i seed=7`,
		PreRunE: loadDotEnv,
		RunE:    PredictHandler,
	}
	predictCmd.Flags().StringArrayP("input", "i", nil, "Input as key=value (repeatable)")
	predictCmd.Flags().String("id", "", "Prediction id (default: generated by the server)")
	predictCmd.Flags().Bool("display", false, "Show the image inline on supporting terminals")
	return predictCmd
}
