package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tessro/paira/internal/config"
	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/fingerprint"
	"github.com/tessro/paira/internal/license"
)

var (
	licenseHWID  string
	licenseLocal bool
	updateLocal  bool
	outputFormat string
)

// Output formats for service responses.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var licenseCmd = &cobra.Command{
	Use:   "license [token]",
	Short: "Validate a license token",
	Long: `Validate a license token against this machine's hardware ID and print the
service response. Without a token argument, api.token from the config file is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) > 0 {
			token = args[0]
		}

		if licenseLocal {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if token == "" {
				token = cfg.GetLicenseToken()
			}
			return runLicenseLocal(cmd.Context(), os.Stdout, newLicenseClient(cfg), fingerprint.DefaultResolver(nil), token, licenseHWID)
		}

		client, err := ConnectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		return runLicense(os.Stdout, client, token, licenseHWID)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for a newer release",
	Long:  "Ask the update service for the latest release and print its response.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if updateLocal {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			result, err := newLicenseClient(cfg).CheckUpdates(cmd.Context())
			if err != nil {
				return fmt.Errorf("update check: %w", err)
			}
			return printResult(os.Stdout, result, outputFormat)
		}

		client, err := ConnectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.UpdateCheck()
		if err != nil {
			return fmt.Errorf("update check: %w", err)
		}
		return printResult(os.Stdout, resp.Result, outputFormat)
	},
}

func runLicense(w io.Writer, client daemon.ShellClient, token, hwid string) error {
	resp, err := client.LicenseValidate(token, hwid)
	if err != nil {
		return fmt.Errorf("license: %w", err)
	}
	fmt.Fprintln(w, dimStyle.Render("🤖 hwid "+resp.HWID))
	return printResult(w, resp.Result, outputFormat)
}

func runLicenseLocal(ctx context.Context, w io.Writer, lic *license.Client, resolver *fingerprint.Resolver, token, hwid string) error {
	if hwid == "" {
		ident, err := resolver.Resolve(ctx)
		if err != nil {
			return fmt.Errorf("resolve hardware id: %w", err)
		}
		hwid = ident.Hash
	}

	result, err := lic.Validate(ctx, hwid, token)
	if err != nil {
		return fmt.Errorf("license: %w", err)
	}
	fmt.Fprintln(w, dimStyle.Render("🤖 hwid "+hwid))
	return printResult(w, result, outputFormat)
}

// printResult prints a service response in the requested format.
func printResult(w io.Writer, raw json.RawMessage, format string) error {
	switch format {
	case "", formatJSON:
		return printJSON(w, raw)
	case formatYAML:
		return printYAML(w, raw)
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// printJSON pretty-prints a service response.
func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// printYAML re-encodes a service response as YAML.
func printYAML(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	return enc.Close()
}

// loadConfig loads and validates the config file. A missing file yields
// a nil config, whose getters return defaults.
func loadConfig() (*config.GlobalConfig, error) {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLicenseClient(cfg *config.GlobalConfig) *license.Client {
	return license.New(license.Config{
		BaseURL:     cfg.GetAPIBaseURL(),
		LicensePath: cfg.GetLicensePath(),
		UpdatesPath: cfg.GetUpdatesPath(),
		Timeout:     cfg.GetAPITimeout(),
	})
}

func init() {
	licenseCmd.Flags().StringVar(&licenseHWID, "hwid", "", "validate against this hardware ID instead of this machine's")
	licenseCmd.Flags().BoolVar(&licenseLocal, "local", false, "call the service directly instead of through the daemon")
	updateCmd.Flags().BoolVar(&updateLocal, "local", false, "call the service directly instead of through the daemon")
	for _, cmd := range []*cobra.Command{licenseCmd, updateCmd} {
		cmd.Flags().StringVarP(&outputFormat, "output", "o", formatJSON, "response format (json, yaml)")
	}
	rootCmd.AddCommand(licenseCmd)
	rootCmd.AddCommand(updateCmd)
}
