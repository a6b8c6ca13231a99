package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jobrunner/tarantula/internal/app"
	"github.com/jobrunner/tarantula/internal/config"
	"github.com/jobrunner/tarantula/internal/domain"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Load a layer file and report rejected rings",
	Long: `Check reads a single layer file the way the server would and prints how
many regions were indexed and how many rings were rejected. The layer is
looked up in the catalog by its district directory and file name unless
--layer names it.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Resolve a coordinate against all layers and print the matches",
	RunE:  runQuery,
}

func init() {
	checkCmd.Flags().String("layer", "", "configured layer name to use for the file")

	queryCmd.Flags().Float64("lon", 0, "longitude in degrees")
	queryCmd.Flags().Float64("lat", 0, "latitude in degrees")
	_ = queryCmd.MarkFlagRequired("lon")
	_ = queryCmd.MarkFlagRequired("lat")
}

// checkReport is printed by the check command.
type checkReport struct {
	Path     string         `json:"path"`
	Layer    string         `json:"layer"`
	Format   string         `json:"format"`
	Regions  int            `json:"regions"`
	Rejected int            `json:"rejected"`
	Extent   *domain.Extent `json:"extent,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	path := args[0]
	format, err := domain.FormatFromPath(path)
	if err != nil {
		return err
	}

	spec, err := layerSpecFor(cfg.Search, path, cmd.Flag("layer").Value.String())
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Shutdown(ctx) }()

	layer, err := a.Source.Load(ctx, path, spec)
	if err != nil {
		return err
	}

	report := checkReport{
		Path:     path,
		Layer:    spec.Name,
		Format:   string(format),
		Regions:  len(layer.Regions),
		Rejected: layer.Rejected,
	}
	if layer.Extent.IsValid() {
		report.Extent = &layer.Extent
	}
	return printJSON(cmd.OutOrStdout(), report)
}

// layerSpecFor finds the spec of a layer file, by name when given and by
// catalog position otherwise.
func layerSpecFor(cfg config.SearchConfig, path, name string) (domain.LayerSpec, error) {
	catalog := app.NewCatalog(cfg)
	if name != "" {
		spec, ok := catalog.Layers[name]
		if !ok {
			return domain.LayerSpec{}, fmt.Errorf("layer %q is not configured", name)
		}
		return spec, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.LayerSpec{}, err
	}
	key := filepath.Base(filepath.Dir(abs)) + "/" + filepath.Base(abs)
	entry, ok := catalog.Lookup(key)
	if !ok {
		return domain.LayerSpec{}, fmt.Errorf("%s is not part of the catalog, use --layer", key)
	}
	return entry.Spec, nil
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	lon, err := cmd.Flags().GetFloat64("lon")
	if err != nil {
		return err
	}
	lat, err := cmd.Flags().GetFloat64("lat")
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Shutdown(ctx) }()

	if err := a.Registry.LoadAll(ctx); err != nil {
		return err
	}

	resp, err := a.SearchService.Search(ctx, domain.NewCoordinate(lon, lat))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp.Matches)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
