// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fluxserve/fluxserve/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "fluxserve",
		Short:         "Prediction server for accelerated FLUX image models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	serveCmd := newServeCmd()
	predictCmd := newPredictCmd()
	showCmd := newShowCmd()
	versionCmd := newVersionCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["FLUXSERVE_HOST"]}

	for _, cmd := range []*cobra.Command{
		serveCmd,
		predictCmd,
		showCmd,
		versionCmd,
	} {
		switch cmd {
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["FLUXSERVE_DEBUG"],
				envVars["FLUXSERVE_HOST"],
				envVars["FLUXSERVE_ORIGINS"],
				envVars["FLUXSERVE_MODEL"],
				envVars["FLUXSERVE_BACKEND"],
				envVars["FLUXSERVE_RUNNER"],
				envVars["FLUXSERVE_LOAD_TIMEOUT"],
				envVars["FLUXSERVE_OUTPUTS"],
				envVars["FLUXSERVE_SMASH_TOKEN"],
				envVars["HF_TOKEN"],
			})
		case showCmd:
			// show arbeitet ohne Server
		default:
			appendEnvDocs(cmd, envs)
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		predictCmd,
		showCmd,
		versionCmd,
	)

	return rootCmd
}
