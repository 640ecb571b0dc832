package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/testutil"
)

func TestExportCommand(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	done := testutil.WriteSessionLog(t, dir, testutil.SessionFixture{Query: "weather today", Final: true})
	open := testutil.WriteSessionLog(t, dir, testutil.SessionFixture{Query: "tides", Turns: internal.NewTestTranscript()[:4]})

	tests := []struct {
		name      string
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name:    "invalid format",
			args:    []string{"export", "--format", "invalid"},
			wantErr: true,
		},
		{
			name:    "unknown session",
			args:    []string{"export", "--session", "nope"},
			wantErr: true,
		},
		{
			name:      "all sessions as markdown",
			args:      []string{"export", "--format", "md"},
			wantFiles: []string{"2025-06-01_" + done.MD5 + ".md", "2025-06-01_" + open.MD5 + ".md"},
		},
		{
			name:      "one session as yaml",
			args:      []string{"export", "-f", "yaml", "--session", done.MD5},
			wantFiles: []string{"2025-06-01_" + done.MD5 + ".yaml"},
		},
		{
			name:      "complete only",
			args:      []string{"export", "--complete-only"},
			wantFiles: []string{"2025-06-01_" + done.MD5 + ".jsonl"},
		},
		{
			name: "date filter without matches",
			args: []string{"export", "--date", "1999-01-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			args := append([]string{"--data-dir", dir}, tt.args...)
			args = append(args, "--out", out)

			_, err := runCommand(t, args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("exportCmd.Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			entries, err := os.ReadDir(out)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != len(tt.wantFiles) {
				t.Errorf("exported %d file(s), want %d", len(entries), len(tt.wantFiles))
			}
			for _, name := range tt.wantFiles {
				data, err := os.ReadFile(filepath.Join(out, name))
				if err != nil {
					t.Errorf("missing export %s: %v", name, err)
					continue
				}
				if len(data) == 0 {
					t.Errorf("export %s is empty", name)
				}
			}
		})
	}
}

func TestExportFileName(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	key := testutil.WriteSessionLog(t, dir, testutil.SessionFixture{Query: "weather today", Final: true})

	out := t.TempDir()
	if _, err := runCommand(t, "--data-dir", dir, "export", "-f", "json", "-s", key.RelPath(), "-o", out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(out, key.Date+"_"+key.MD5+".json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"final_result": "It will be sunny [^0^]."`) {
		t.Errorf("unexpected export:\n%s", data)
	}
}
