package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/syncplane/pkg/client"
)

var (
	serverURL  string
	apiKey     string
	jsonOutput bool
)

// addClientFlags registers the flags shared by commands that call a
// running server.
func addClientFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&serverURL, "url", "",
		"Server URL (default $SYNCPLANE_URL or http://localhost:8080)")
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", "",
		"API key (default $SYNCPLANE_API_KEY)")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")
}

// newClient builds an API client from flags, falling back to environment.
func newClient() *client.Client {
	url := serverURL
	if url == "" {
		url = os.Getenv("SYNCPLANE_URL")
	}
	if url == "" {
		url = "http://localhost:8080"
	}
	key := apiKey
	if key == "" {
		key = os.Getenv("SYNCPLANE_API_KEY")
	}
	return client.New(url, key)
}

func parseJobID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", s)
	}
	return id, nil
}

func parseAttemptNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid attempt number %q", s)
	}
	return n, nil
}

// readPayload reads a JSON document from path, or stdin when path is "-".
// An empty path yields nil.
func readPayload(cmd *cobra.Command, path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s does not contain valid JSON", path)
	}
	return json.RawMessage(data), nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
