package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/rolekeeper/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		outputFile string
		serverURL  string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long:  `Generate the OpenAPI 3.1 document describing the Rolekeeper HTTP API.`,
		Example: `  rolekeeper openapi                                  # print to stdout
  rolekeeper openapi -o openapi.json --server-url https://admin.example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPI(cmd.OutOrStdout(), serverURL, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")
	cmd.Flags().StringVar(&serverURL, "server-url", "http://localhost:8080", "Server URL listed in the document")

	return cmd
}

func runOpenAPI(out io.Writer, serverURL, outputFile string) error {
	doc := openapi.Generate(serverURL, versionString())
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal OpenAPI document: %w", err)
	}

	if outputFile == "" {
		_, err = fmt.Fprintln(out, string(b))
		return err
	}
	if err := os.WriteFile(outputFile, append(b, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", outputFile, err)
	}
	fmt.Fprintf(out, "Wrote %s\n", outputFile)
	return nil
}
