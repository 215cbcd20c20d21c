package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"raincheck/internal/config"
	"raincheck/internal/core"
	"raincheck/internal/models"
	"raincheck/internal/prediction"
	"raincheck/internal/stadiums"
	"raincheck/internal/types"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	modelDir    string
	catalogPath string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "modelctl",
		Short: "Inspect and exercise raincheck stadium models",
		Long: `modelctl works directly on model artifacts and the stadium catalog,
without starting the API server.`,
		Version:       config.NewBuildInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.modelDir, "model-dir", envOr("MODEL_DIR", "models"), "Base directory for relative artifact locators")
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", os.Getenv("STADIUM_CATALOG_PATH"), "Stadium catalog YAML (default: built-in table)")
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate("modelctl version {{.Version}}\n")

	root.AddCommand(
		newInspectCmd(opts),
		newPredictCmd(opts),
		newStadiumsCmd(opts),
	)
	return root
}

func newInspectCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Validate an artifact and describe the model it contains",
		Long: `Reads a .json or .json.zst artifact, checks its feature columns and
classifier shape, and prints the model description as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), opts, args[0])
		},
	}
}

func runInspect(out io.Writer, opts *globalOptions, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := models.ReadArtifact(f, models.IsCompressed(path))
	if err != nil {
		return fmt.Errorf("invalid artifact %s: %w", path, err)
	}

	def := stadiums.Definition{ID: a.Stadium, Name: a.Stadium, ModelLocator: filepath.Base(path)}
	if catalog, err := stadiums.Load(opts.catalogPath); err == nil {
		if known, ok := catalog.Get(a.Stadium); ok {
			def = known
		}
	}
	m, err := models.NewLoadedModel(def, a)
	if err != nil {
		return err
	}

	return writeJSON(out, struct {
		models.ModelInfo
		Classifier string `json:"classifier"`
	}{m.Info(), a.Classifier.Kind})
}

type predictOptions struct {
	stadium      string
	features     string
	featuresFile string
}

func newPredictCmd(opts *globalOptions) *cobra.Command {
	p := &predictOptions{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run one prediction against a stadium's artifact",
		Long: `Loads the stadium's artifact from the model directory and predicts on a
feature vector given as JSON, e.g.

  modelctl predict --stadium jamsil --features '{"daily_precip_sum":50, ...}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd.Context(), cmd.OutOrStdout(), opts, p)
		},
	}
	cmd.Flags().StringVarP(&p.stadium, "stadium", "s", stadiums.DefaultStadium, "Stadium id")
	cmd.Flags().StringVarP(&p.features, "features", "f", "", "Feature vector as a JSON object")
	cmd.Flags().StringVar(&p.featuresFile, "features-file", "", "Read the feature vector from a JSON file")
	cmd.MarkFlagsMutuallyExclusive("features", "features-file")
	return cmd
}

func runPredict(ctx context.Context, out io.Writer, opts *globalOptions, p *predictOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if p.features == "" && p.featuresFile == "" {
		return fmt.Errorf("one of --features or --features-file is required")
	}
	raw := []byte(p.features)
	if p.featuresFile != "" {
		b, err := os.ReadFile(p.featuresFile)
		if err != nil {
			return err
		}
		raw = b
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var fv types.FeatureVector
	if err := dec.Decode(&fv); err != nil {
		return fmt.Errorf("parsing features: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := core.NewValidator(logger).ValidateStruct(&fv); err != nil {
		return err
	}

	catalog, err := stadiums.Load(opts.catalogPath)
	if err != nil {
		return err
	}
	def, err := catalog.Lookup(p.stadium)
	if err != nil {
		return err
	}
	m, err := models.LoadStadium(ctx, models.FileStore{Dir: opts.modelDir}, def)
	if err != nil {
		return err
	}

	engine := prediction.NewEngine(models.NewRegistryFromModels(m), logger)
	result, err := engine.Predict(ctx, def.ID, fv)
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

func newStadiumsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stadiums",
		Short: "Print the stadium catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := stadiums.Load(opts.catalogPath)
			if err != nil {
				return err
			}
			return printCatalog(cmd.OutOrStdout(), catalog, opts.modelDir)
		},
	}
}

// printCatalog lists every venue and whether its local artifact exists.
func printCatalog(out io.Writer, catalog *stadiums.Catalog, modelDir string) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTEAM\tLAT\tLON\tARTIFACT\tPRESENT")
	for _, d := range catalog.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\t%s\t%s\n",
			d.ID, d.Name, d.Team, d.Lat, d.Lon, d.ModelLocator, artifactPresence(modelDir, d.ModelLocator))
	}
	return tw.Flush()
}

func artifactPresence(dir, locator string) string {
	if strings.HasPrefix(locator, "s3://") {
		return "remote"
	}
	path := locator
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return "no"
	}
	return "yes"
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
