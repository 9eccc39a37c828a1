// cmd_serve.go - Server und Version Funktionen
// Hauptfunktionen: RunServer, versionHandler
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fluxserve/fluxserve/api"
	"github.com/fluxserve/fluxserve/envconfig"
	"github.com/fluxserve/fluxserve/pipeline"
	"github.com/fluxserve/fluxserve/server"
	"github.com/fluxserve/fluxserve/version"
)

// loadDotEnv - Liest .env im Arbeitsverzeichnis, gesetzte Variablen gewinnen
func loadDotEnv(_ *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}
	return nil
}

// RunServer - Startet den fluxserve-Server
func RunServer(cmd *cobra.Command, _ []string) error {
	model, err := cmd.Flags().GetString("model")
	if err != nil {
		return err
	}
	if model == "" {
		model = envconfig.Model()
	}

	loader, err := pipeline.LoaderFromEnvironment()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	err = server.Serve(ln, model, loader)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// versionHandler - Zeigt die Version an
func versionHandler(cmd *cobra.Command, _ []string) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		fmt.Println("Warning: could not connect to a running fluxserve instance")
	}

	if serverVersion != "" {
		fmt.Printf("fluxserve version is %s\n", serverVersion)
	}

	if serverVersion != version.Version {
		fmt.Printf("Warning: client version is %s\n", version.Version)
	}
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start fluxserve",
		Args:    cobra.ExactArgs(0),
		PreRunE: loadDotEnv,
		RunE:    RunServer,
	}
	serveCmd.Flags().String("model", "", "Model variant to serve (default from FLUXSERVE_MODEL)")
	return serveCmd
}

// newVersionCmd - Erstellt den version Command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.ExactArgs(0),
		Run:   versionHandler,
	}
}
