package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/rescale/assetmover/internal/config"
)

// executeCommand runs the full command tree against fs.
func executeCommand(t *testing.T, fs afero.Fs, stdin string, args ...string) (string, string, error) {
	t.Helper()

	prevFs := appFs
	appFs = fs
	t.Cleanup(func() { appFs = prevFs })

	root := NewRootCmd()
	AddCommands(root)

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), errOut.String(), err
}

// TestConfigCmd tests the config command group
func TestConfigCmd(t *testing.T) {
	cmd := newConfigCmd()
	if cmd.Use != "config" {
		t.Errorf("Expected Use='config', got '%s'", cmd.Use)
	}

	expectedSubs := []string{"init", "show", "path"}
	subcommands := cmd.Commands()
	if len(subcommands) != len(expectedSubs) {
		t.Errorf("Expected %d subcommands, got %d", len(expectedSubs), len(subcommands))
	}

	foundSubs := make(map[string]bool)
	for _, sub := range subcommands {
		foundSubs[sub.Name()] = true
		if sub.Short == "" {
			t.Errorf("Subcommand '%s' has no short description", sub.Name())
		}
		if sub.RunE == nil {
			t.Errorf("Subcommand '%s' has no RunE", sub.Name())
		}
	}
	for _, expected := range expectedSubs {
		if !foundSubs[expected] {
			t.Errorf("Subcommand '%s' not found", expected)
		}
	}
}

// TestConfigInit tests the config init command structure
func TestConfigInit(t *testing.T) {
	cmd := newConfigInitCmd()
	if cmd.Flags().Lookup("force") == nil {
		t.Error("--force flag not found")
	}
}

func TestConfigInitWritesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	stdin := strings.Join([]string{
		"",                        // empty answer is re-asked
		"https://cms.example.com", // site URL
		"secret-token",            // token
		"",                        // CSRF
		"y",                       // configure proxy
		"basic",                   // mode
		"proxy.local",             // host
		"3128",                    // port
		"",                        // user
		"localhost",               // no_proxy
		"tui",                     // prompt style
	}, "\n") + "\n"

	out, _, err := executeCommand(t, fs, stdin, "--config", "/home/u/.config/assetmover/config", "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "site URL is required") {
		t.Error("Expected empty site URL to be re-asked")
	}
	if !strings.Contains(out, "Configuration saved to") {
		t.Errorf("Expected save confirmation, got:\n%s", out)
	}

	cfg, err := config.Load(fs, "/home/u/.config/assetmover/config")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BaseURL != "https://cms.example.com" || cfg.Token != "secret-token" {
		t.Errorf("Unexpected site settings %q %q", cfg.BaseURL, cfg.Token)
	}
	if cfg.ProxyMode != "basic" || cfg.ProxyHost != "proxy.local" || cfg.ProxyPort != 3128 {
		t.Errorf("Unexpected proxy settings %s %s:%d", cfg.ProxyMode, cfg.ProxyHost, cfg.ProxyPort)
	}
	if cfg.NoProxy != "localhost" {
		t.Errorf("Expected no_proxy localhost, got %q", cfg.NoProxy)
	}
	if cfg.PromptStyle != config.PromptStyleTUI {
		t.Errorf("Expected prompt style tui, got %s", cfg.PromptStyle)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/c", []byte("[site]\nbase_url = https://old.example.com\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := executeCommand(t, fs, "", "--config", "/c", "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("Expected refusal, got:\n%s", out)
	}

	data, _ := afero.ReadFile(fs, "/c")
	if !strings.Contains(string(data), "old.example.com") {
		t.Error("Existing config was overwritten")
	}
}

func TestConfigShowRedactsAndMerges(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := config.New()
	cfg.BaseURL = "https://file.example.com"
	cfg.Token = "abcdefgh"
	if err := config.Save(fs, cfg, "/c"); err != nil {
		t.Fatal(err)
	}

	out, _, err := executeCommand(t, fs, "", "--config", "/c", "--base-url", "https://flag.example.com", "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}

	if strings.Contains(out, "abcdefgh") {
		t.Error("Token must not be displayed in full")
	}
	if !strings.Contains(out, "abcd****") {
		t.Errorf("Expected masked token, got:\n%s", out)
	}
	if !strings.Contains(out, "https://flag.example.com") {
		t.Errorf("Expected flag override for base URL, got:\n%s", out)
	}
}

func TestConfigPath(t *testing.T) {
	fs := afero.NewMemMapFs()

	out, _, err := executeCommand(t, fs, "", "--config", "/missing", "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.Contains(out, "from --config flag") || !strings.Contains(out, "does not exist") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}
