package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dyuri/lvltool/internal/cache"
	"github.com/dyuri/lvltool/internal/config"
	"github.com/dyuri/lvltool/internal/elvl"
	"github.com/dyuri/lvltool/internal/img"
	"github.com/dyuri/lvltool/internal/level"
	"github.com/dyuri/lvltool/internal/logging"
	"github.com/dyuri/lvltool/internal/model"
	"github.com/dyuri/lvltool/internal/watch"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg       *config.Config
	log       *logrus.Logger
	logCloser io.Closer
)

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lvltool",
	Short: "Inspect SubSpace level files",
	Long: `lvltool is a tool for working with SubSpace/Continuum .lvl files.

It decodes the tileset bitmap, the tile grid and the eLVL metadata
(attributes and regions), and can summarize, list, validate and watch
level files.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: ./lvltool.yaml or ~/.config/lvltool/lvltool.yaml)")
	flags.String("log-level", "warn", "Log level: trace, debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text, json")
	flags.String("log-file", "", "Write logs to a rotated file instead of stderr")
	flags.Bool("parallel", false, "Decode regions concurrently")
	flags.Int("workers", 0, "Concurrency limit for --parallel (0 = unlimited)")
	flags.Bool("skip-tileset", false, "Do not decode the tileset bitmap")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(attrsCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(tilesCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("config")

	var err error
	cfg, err = config.Load(v, path)
	if err != nil {
		return err
	}

	log, logCloser, err = logging.New(cfg.Log)
	if err != nil {
		return err
	}
	log.WithField("config", v.ConfigFileUsed()).Debug("configuration loaded")
	return nil
}

func newLoader() *level.Loader {
	return level.NewLoader(level.Options{
		Logger:      log,
		Parallel:    cfg.Decode.Parallel,
		Workers:     cfg.Decode.Workers,
		SkipTileset: cfg.Decode.SkipTileset,
	})
}

func loadLevel(path string) (*model.Map, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read input file: %w", err)
	}
	m, err := newLoader().Load(data)
	if err != nil {
		return nil, 0, fmt.Errorf("parse level file: %w", err)
	}
	m.Filename = path
	return m, int64(len(data)), nil
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info <input.lvl>",
	Short: "Display level file information",
	Long: `Display metadata and statistics about a level file.

Shows the tileset size, tile count, and every eLVL chunk.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().String("format", "text", "Output format: text, json, yaml")
	infoCmd.Flags().Bool("brief", false, "Show only summary")
}

func runInfo(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	format, _ := cmd.Flags().GetString("format")
	brief, _ := cmd.Flags().GetBool("brief")

	m, fileSize, err := loadLevel(inputPath)
	if err != nil {
		return err
	}

	summary := summarize(m, fileSize)
	out := cmd.OutOrStdout()

	switch format {
	case "text":
		return outputInfoText(out, summary, brief)
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(summary)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

type levelSummary struct {
	File       string         `json:"file" yaml:"file"`
	FileSize   int64          `json:"fileSize" yaml:"file_size"`
	Tileset    *tilesetInfo   `json:"tileset,omitempty" yaml:"tileset,omitempty"`
	Tiles      int            `json:"tiles" yaml:"tiles"`
	Chunks     map[string]int `json:"chunks" yaml:"chunks"`
	Attributes []attrInfo     `json:"attributes" yaml:"attributes"`
	Regions    []regionInfo   `json:"regions" yaml:"regions"`
	Other      []otherInfo    `json:"other" yaml:"other"`
}

type tilesetInfo struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

type attrInfo struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

type regionInfo struct {
	Name  string `json:"name" yaml:"name"`
	Flags string `json:"flags" yaml:"flags"`
	Tiles int    `json:"tiles" yaml:"tiles"`
}

type otherInfo struct {
	Tag  string `json:"tag" yaml:"tag"`
	Kind string `json:"kind" yaml:"kind"`
	Size int    `json:"size" yaml:"size"`
}

func summarize(m *model.Map, fileSize int64) levelSummary {
	s := levelSummary{
		File:       m.Filename,
		FileSize:   fileSize,
		Tiles:      m.TileCount(),
		Chunks:     make(map[string]int),
		Attributes: make([]attrInfo, 0),
		Regions:    make([]regionInfo, 0),
		Other:      make([]otherInfo, 0),
	}
	if m.Tileset != nil {
		b := m.Tileset.Bounds()
		s.Tileset = &tilesetInfo{Width: b.Dx(), Height: b.Dy()}
	}

	for _, chunk := range m.Chunks {
		s.Chunks[chunk.Kind().String()]++
		switch c := chunk.(type) {
		case *model.Attribute:
			s.Attributes = append(s.Attributes, attrInfo{Key: c.Key, Value: c.Value})
		case *model.Region:
			s.Regions = append(s.Regions, regionInfo{
				Name:  c.Name,
				Flags: c.Flags.String(),
				Tiles: c.TileCount(),
			})
		case *model.Other:
			s.Other = append(s.Other, otherInfo{
				Tag:  c.Code.String(),
				Kind: c.Kind().String(),
				Size: len(c.Payload),
			})
		}
	}
	return s
}

func outputInfoText(w io.Writer, s levelSummary, brief bool) error {
	if brief {
		fmt.Fprintf(w, "%s: Tiles=%d Attributes=%d Regions=%d Other=%d\n",
			s.File, s.Tiles, len(s.Attributes), len(s.Regions), len(s.Other))
		return nil
	}

	fmt.Fprintf(w, "Level File: %s\n", s.File)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	if s.Tileset != nil {
		fmt.Fprintf(w, "Tileset:            %dx%d\n", s.Tileset.Width, s.Tileset.Height)
	} else {
		fmt.Fprintln(w, "Tileset:            none")
	}
	fmt.Fprintf(w, "Tiles:              %d\n", s.Tiles)
	fmt.Fprintf(w, "File Size:          %s (%d bytes)\n", formatBytes(s.FileSize), s.FileSize)
	fmt.Fprintln(w)

	for _, a := range s.Attributes {
		fmt.Fprintf(w, "Attribute (%s = %s)\n", a.Key, a.Value)
	}
	for _, r := range s.Regions {
		fmt.Fprintf(w, "Region: %s (%d tiles, flags: %s)\n", r.Name, r.Tiles, r.Flags)
	}
	for _, o := range s.Other {
		fmt.Fprintf(w, "Other: %s (%s, %d bytes)\n", o.Tag, o.Kind, o.Size)
	}

	return nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// attrs command
var attrsCmd = &cobra.Command{
	Use:   "attrs <input.lvl> [key]",
	Short: "List eLVL attributes",
	Long: `List attributes in file order, or print the value of one key.

Keys compare case-insensitively; when a key repeats, the last one wins.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAttrs,
}

func runAttrs(cmd *cobra.Command, args []string) error {
	m, _, err := loadLevel(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 2 {
		value, ok := m.Attribute(args[1])
		if !ok {
			return fmt.Errorf("attribute not found: %s", args[1])
		}
		fmt.Fprintln(out, value)
		return nil
	}

	for _, a := range m.Attributes() {
		fmt.Fprintf(out, "%s=%s\n", a.Key, a.Value)
	}
	return nil
}

// regions command
var regionsCmd = &cobra.Command{
	Use:   "regions <input.lvl>",
	Short: "List eLVL regions",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegions,
}

func init() {
	regionsCmd.Flags().String("name", "", "Only show the region with this name")
	regionsCmd.Flags().Bool("tiles", false, "List every tile coordinate")
}

func runRegions(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	showTiles, _ := cmd.Flags().GetBool("tiles")

	m, _, err := loadLevel(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	found := false
	for _, r := range m.Regions() {
		if name != "" && r.Name != name {
			continue
		}
		found = true

		fmt.Fprintf(out, "%q flags=%s tiles=%d", r.Name, r.Flags, r.TileCount())
		if lo, hi, ok := r.Bounds(); ok {
			fmt.Fprintf(out, " bounds=(%d,%d)-(%d,%d)", lo.X, lo.Y, hi.X, hi.Y)
		}
		fmt.Fprintln(out)

		if showTiles {
			for _, c := range r.Tiles() {
				fmt.Fprintf(out, "  %d,%d\n", c.X, c.Y)
			}
		}
	}

	if name != "" && !found {
		return fmt.Errorf("region not found: %s", name)
	}
	return nil
}

// tiles command
var tilesCmd = &cobra.Command{
	Use:   "tiles <input.lvl>",
	Short: "Show tile grid statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runTiles,
}

func init() {
	tilesCmd.Flags().Bool("ids", false, "Count each tile id separately")
}

func runTiles(cmd *cobra.Command, args []string) error {
	ids, _ := cmd.Flags().GetBool("ids")

	m, _, err := loadLevel(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	byClass := make(map[model.TileClass]int)
	byID := make(map[model.TileID]int)
	for y := 0; y < model.GridHeight; y++ {
		for x := 0; x < model.GridWidth; x++ {
			id := m.Tile(x, y)
			if id == model.TileEmpty {
				continue
			}
			byClass[id.Class()]++
			byID[id]++
		}
	}

	if ids {
		keys := make([]int, 0, len(byID))
		for id := range byID {
			keys = append(keys, int(id))
		}
		sort.Ints(keys)
		for _, id := range keys {
			fmt.Fprintf(out, "%3d %-9s %d\n", id, model.TileID(id).Class(), byID[model.TileID(id)])
		}
		return nil
	}

	for c := model.ClassNormal; c <= model.ClassWormhole; c++ {
		fmt.Fprintf(out, "%-9s %d\n", c, byClass[c])
	}
	return nil
}

// validate command
var validateCmd = &cobra.Command{
	Use:   "validate <input.lvl>",
	Short: "Validate level file structure",
	Long: `Validate level file structure and contents.

Decoding errors are reported with their kind and offset. Structural
oddities that decode fine are reported as warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("strict", false, "Fail on warnings")
}

func runValidate(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	strict, _ := cmd.Flags().GetBool("strict")

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input file: %w", err)
	}

	v := newValidator(inputPath, strict)
	m, err := newLoader().Load(data)
	if err != nil {
		v.decodeError(err)
	} else {
		v.validate(m)
	}

	v.printResults(cmd.OutOrStdout())

	if v.hasErrors() || (strict && v.hasWarnings()) {
		return fmt.Errorf("validation failed")
	}
	return nil
}

// validator holds validation state
type validator struct {
	strict   bool
	errors   []string
	warnings []string
	file     string
}

func newValidator(file string, strict bool) *validator {
	return &validator{
		strict:   strict,
		file:     file,
		errors:   make([]string, 0),
		warnings: make([]string, 0),
	}
}

func (v *validator) error(msg string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(msg, args...))
}

func (v *validator) warning(msg string, args ...interface{}) {
	v.warnings = append(v.warnings, fmt.Sprintf(msg, args...))
}

func (v *validator) hasErrors() bool {
	return len(v.errors) > 0
}

func (v *validator) hasWarnings() bool {
	return len(v.warnings) > 0
}

func (v *validator) decodeError(err error) {
	var e *elvl.Error
	if errors.As(err, &e) {
		v.error("%s at offset %d: %s", e.Kind, e.Offset, e.Error())
		return
	}
	v.error("%v", err)
}

func (v *validator) validate(m *model.Map) {
	if m.TileCount() == 0 {
		v.warning("Level has no tiles")
	}

	seen := make(map[string]bool)
	for i, r := range m.Regions() {
		if r.Name == "" {
			v.warning("Region %d has no name", i)
		} else if seen[r.Name] {
			v.warning("Duplicate region name: %q", r.Name)
		}
		seen[r.Name] = true

		if r.TileCount() == 0 {
			v.warning("Region %q has no tiles", r.Name)
		}
	}

	keys := make(map[string]int)
	for _, a := range m.Attributes() {
		if a.Key == "" {
			v.warning("Attribute with empty key (value %q)", a.Value)
		}
		keys[strings.ToUpper(a.Key)]++
	}
	for key, n := range keys {
		if n > 1 {
			v.warning("Attribute %s appears %d times, last one wins", key, n)
		}
	}

	for _, chunk := range m.Chunks {
		if o, ok := chunk.(*model.Other); ok && o.Kind() == model.KindOther {
			v.warning("Unknown chunk %s (%d bytes) preserved as-is", o.Code, len(o.Payload))
		}
	}
}

func (v *validator) printResults(w io.Writer) {
	fmt.Fprintf(w, "Validating: %s\n", v.file)
	fmt.Fprintln(w, strings.Repeat("=", 50))

	if len(v.errors) == 0 && len(v.warnings) == 0 {
		fmt.Fprintln(w, "✓ Valid level file - no issues found")
		return
	}

	if len(v.errors) > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(v.errors))
		for _, err := range v.errors {
			fmt.Fprintf(w, "  ✗ %s\n", err)
		}
	}

	if len(v.warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(v.warnings))
		for _, warn := range v.warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", warn)
		}
	}

	fmt.Fprintln(w)
	if len(v.errors) > 0 {
		fmt.Fprintf(w, "Validation failed: %d error(s)", len(v.errors))
		if len(v.warnings) > 0 {
			fmt.Fprintf(w, ", %d warning(s)", len(v.warnings))
		}
		fmt.Fprintln(w)
	} else if len(v.warnings) > 0 {
		fmt.Fprintf(w, "Validation passed with %d warning(s)\n", len(v.warnings))
		if v.strict {
			fmt.Fprintln(w, "(use without --strict to ignore warnings)")
		}
	}
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch <path>...",
	Short: "Reload level files when they change",
	Long: `Watch level files or directories and print a brief summary each
time a .lvl file is written. Unchanged contents are served from cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", 0, "Ignore repeated events for the same file within this window")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	maps, err := cache.New(cfg.Cache.MaxCostMB)
	if err != nil {
		return err
	}
	defer maps.Close()

	w, err := watch.New(cfg.Watch.Debounce, args...)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	loader := newLoader()
	out := cmd.OutOrStdout()
	log.WithField("paths", args).Info("watching for level changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-w.Events:
			if !ok {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				log.WithError(err).WithField("file", path).Warn("read changed level")
				continue
			}
			m, hit, err := maps.Load(path, data, loader.Load)
			if err != nil {
				fmt.Fprintf(out, "%s: %v\n", path, err)
				continue
			}
			s := summarize(m, int64(len(data)))
			s.File = path
			outputInfoText(out, s, true)
			log.WithFields(logrus.Fields{"file": path, "cached": hit}).Debug("level reloaded")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watcher error")
		}
	}
}

// extract command
var extractCmd = &cobra.Command{
	Use:   "extract <input.lvl>",
	Short: "Extract tileset graphics",
	Long: `Extract each 16x16 tile graphic of the embedded tileset into its
own image file, named by tile id.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringP("output", "o", "", "Output directory (default: <input>_tiles)")
	extractCmd.Flags().String("format", "png", "Image format: png, bmp")
}

func runExtract(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	outputDir, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	if outputDir == "" {
		outputDir = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_tiles"
	}
	if cfg.Decode.SkipTileset {
		return fmt.Errorf("extract needs the tileset, remove --skip-tileset")
	}

	m, _, err := loadLevel(inputPath)
	if err != nil {
		return err
	}

	files, err := img.ExtractTiles(m.Tileset, outputDir, img.Format(format))
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d tile(s) to %s\n", len(files), outputDir)
	log.WithFields(logrus.Fields{"file": inputPath, "tiles": len(files)}).Debug("tileset extracted")
	return nil
}

// version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lvltool version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
	},
}
