package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const multidropDescription = `
dp multidrop 0x01002927 {
    dpidr 0x0bc12477
    ap 0 {
        base 0x1000
    }
    ap 1 { idr 0x24760010 }
}
`

// execute runs the root command with a clean flag state and an empty config
// directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// Reset flags to prevent accumulation between tests
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func writeDescription(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.dap")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCommandsE2E(t *testing.T) {
	multidrop := writeDescription(t, multidropDescription)

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name: "identify built-in target",
			args: []string{"identify", "--adapter", "simulator"},
			wantContain: []string{
				"Chip: STMicroelectronics 0x0413",
				"STM32F40x/41x (STM32F4)",
				"Cortex-M4",
			},
		},
		{
			name: "access ports of built-in target",
			args: []string{"aps", "--adapter", "simulator"},
			wantContain: []string{
				"Debug port default (DPv1): 1 access port(s)",
				"MEM-AP",
				"base 0xE00FF000",
				"HNONSEC",
			},
		},
		{
			name: "dpidr of built-in target",
			args: []string{"dpidr", "--adapter", "simulator"},
			wantContain: []string{
				"DPIDR:    0x2BA01477",
				"Version:  DPv1",
				"Designer: ARM Ltd",
			},
		},
		{
			name: "multidrop access ports",
			args: []string{"aps", "-a", "simulator", "-t", multidrop, "--dp", "0x01002927"},
			wantContain: []string{
				"Debug port multidrop(0x01002927) (DPv2): 2 access port(s)",
				"base 0x00001000",
				"other",
			},
		},
		{
			name:        "multidrop dpidr",
			args:        []string{"dpidr", "-a", "simulator", "-t", multidrop, "--dp", "0x01002927"},
			wantContain: []string{"DPIDR:    0x0BC12477", "Version:  DPv2"},
		},
		{
			name:        "identify without ROM table",
			args:        []string{"identify", "-a", "simulator", "-t", multidrop, "--dp", "0x01002927"},
			wantContain: []string{"No ROM table identified the chip"},
		},
		{
			name:    "unknown multidrop port",
			args:    []string{"dpidr", "-a", "simulator", "-t", multidrop, "--dp", "0x11002927"},
			wantErr: true,
		},
		{
			name:    "unknown adapter",
			args:    []string{"identify", "--adapter", "jlink"},
			wantErr: true,
		},
		{
			name:    "missing description",
			args:    []string{"identify", "-a", "simulator", "-t", filepath.Join(t.TempDir(), "missing.dap")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.args...)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none\nOutput: %s", output)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
			}

			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

func TestAdapterFromEnvironment(t *testing.T) {
	t.Setenv("OTADI_ADAPTER", "simulator")

	output, err := execute(t, "identify")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "STMicroelectronics") {
		t.Errorf("Output missing chip identity:\n%s", output)
	}
}

func TestAdapterFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "adapter: simulator\ntarget: " + writeDescription(t, multidropDescription) + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := execute(t, "dpidr", "--config", path, "--dp", "0x01002927")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "0x0BC12477") {
		t.Errorf("Output missing multidrop DPIDR:\n%s", output)
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		count int
		want  logrus.Level
	}{
		{0, logrus.WarnLevel},
		{1, logrus.DebugLevel},
		{2, logrus.TraceLevel},
		{5, logrus.TraceLevel},
	}
	for _, tt := range tests {
		if got := logLevel(tt.count); got != tt.want {
			t.Errorf("logLevel(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}
