package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testModelDir = "../../internal/models/testdata"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MODEL_DIR", "")
	t.Setenv("STADIUM_CATALOG_PATH", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInspect(t *testing.T) {
	out, err := execute(t, "inspect", filepath.Join(testModelDir, "kbo_jamsil_model.json"))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}

	var info struct {
		Stadium      string `json:"stadium"`
		StadiumName  string `json:"stadium_name"`
		FeatureCount int    `json:"feature_count"`
		Classifier   string `json:"classifier"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info.Stadium != "jamsil" || info.StadiumName != "잠실야구장" {
		t.Errorf("info = %+v", info)
	}
	if info.FeatureCount == 0 || info.Classifier == "" {
		t.Errorf("missing model shape: %+v", info)
	}
}

func TestInspect_BrokenArtifact(t *testing.T) {
	_, err := execute(t, "inspect", filepath.Join(testModelDir, "kbo_broken_model.json"))
	if err == nil || !strings.Contains(err.Error(), "invalid artifact") {
		t.Fatalf("err = %v", err)
	}
}

func TestPredict(t *testing.T) {
	features := `{"daily_precip_sum":50,"daily_precip_hours":10,"pre_game_precip":15,
		"pre_game_humidity":95,"pre_game_temp":25,"pre_game_wind":10,"prev_day_precip":30,
		"daily_wind_max":20,"daily_temp_mean":24,"month":7,"dayofweek":5}`

	out, err := execute(t, "--model-dir", testModelDir, "predict", "--stadium", "daegu", "--features", features)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	var result struct {
		Stadium     string  `json:"stadium"`
		Probability float64 `json:"cancellation_probability"`
		Confidence  string  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if result.Stadium != "daegu" || result.Probability < 0 || result.Probability > 1 || result.Confidence == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestPredict_FeaturesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.json")
	body := `{"daily_precip_sum":0,"daily_precip_hours":0,"pre_game_precip":0,"pre_game_humidity":40,
		"pre_game_temp":22,"pre_game_wind":2,"prev_day_precip":0,"daily_wind_max":4,
		"daily_temp_mean":21,"month":5,"dayofweek":2}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "--model-dir", testModelDir, "predict", "--features-file", path); err != nil {
		t.Fatalf("predict: %v", err)
	}
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no features", []string{"predict"}, "--features"},
		{"bad json", []string{"predict", "--features", "{"}, "parsing features"},
		{"unknown column", []string{"predict", "--features", `{"rain":1}`}, "parsing features"},
		{"out of range", []string{"predict", "--features", `{"pre_game_humidity":140,"month":7}`}, "pre_game_humidity"},
		{"unknown stadium", []string{"predict", "--stadium", "busan", "--features", `{"month":7}`}, "busan"},
		{"no artifact", []string{"predict", "--stadium", "incheon", "--features", `{"month":7}`}, "artifact"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--model-dir", testModelDir}, tt.args...)
			_, err := execute(t, args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestStadiums(t *testing.T) {
	out, err := execute(t, "--model-dir", testModelDir, "stadiums")
	if err != nil {
		t.Fatalf("stadiums: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("want header + 4 stadiums, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "jamsil") || !strings.HasSuffix(strings.TrimSpace(lines[1]), "yes") {
		t.Errorf("jamsil row = %q", lines[1])
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[4]), "no") {
		t.Errorf("incheon row = %q", lines[4])
	}
}

func TestArtifactPresence_Remote(t *testing.T) {
	if got := artifactPresence("models", "s3://bucket/kbo_jamsil_model.json.zst"); got != "remote" {
		t.Errorf("got %q", got)
	}
}
