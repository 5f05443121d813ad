package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/mask"
	"github.com/menta2k/image-cropper/pkg/types"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("image-cropper"),
		kong.Description("Crop photos through a circle, square or custom mask."),
		kong.UsageOnError(),
		kong.Vars{"version": imagecropper.Version},
	)

	level := zerolog.InfoLevel
	if args.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ctx = log.Logger.WithContext(ctx)
	cliCtx.BindTo(ctx, (*context.Context)(nil))

	return cliCtx.Run(&args)
}

type cliArgs struct {
	Config  string           `help:"Path to a JSON config file." type:"path"`
	Verbose bool             `help:"Enable verbose logging." short:"v"`
	Version kong.VersionFlag `help:"Print version and exit."`

	Crop       cropCmd       `cmd:"" help:"Crop a single image."`
	Bounds     boundsCmd     `cmd:"" help:"Print the region a crop would extract."`
	Batch      batchCmd      `cmd:"" help:"Crop every image in a directory."`
	Serve      serveCmd      `cmd:"" help:"Serve the crop API over HTTP."`
	InitConfig initConfigCmd `cmd:"" help:"Write the default config file."`
}

// loadConfig reads the config named by --config, the user config when it
// exists, or the defaults
func (a *cliArgs) loadConfig() (*config.Config, error) {
	path := a.Config
	if path == "" {
		if p := config.GetConfigPath(); fileExists(p) {
			path = p
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

// setup builds the cropper and initial view for a command
func (a *cliArgs) setup(f SessionFlags) (*imagecropper.ImageCropper, imagecropper.View, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, imagecropper.View{}, err
	}
	view, err := f.apply(cfg)
	if err != nil {
		return nil, imagecropper.View{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, imagecropper.View{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return imagecropper.NewWithConfig(cfg), view, nil
}

// SessionFlags override the crop settings of the loaded config
type SessionFlags struct {
	Mode     string  `help:"Crop mode: circle, square or custom." placeholder:"MODE"`
	Fixed    string  `help:"Fixed crop size in source pixels." placeholder:"WxH"`
	Fit      bool    `help:"Fit the whole image in the viewport instead of filling it."`
	Margin   float64 `help:"Mask size relative to the viewport, in (0,1]."`
	Viewport string  `help:"Viewport size in layout units." placeholder:"WxH"`
	Density  float64 `help:"Device pixel density of the viewport."`
	Zoom     float64 `help:"Zoom relative to the initial fit."`
	Offset   string  `help:"Content offset in layout units." placeholder:"X,Y"`
}

func (f SessionFlags) apply(cfg *config.Config) (imagecropper.View, error) {
	var view imagecropper.View

	if f.Mode != "" {
		m, err := mask.ParseMode(f.Mode)
		if err != nil {
			return view, err
		}
		cfg.Cropper.Mode = m
	}
	if f.Fixed != "" {
		size, err := types.ParsePixelSize(f.Fixed)
		if err != nil {
			return view, fmt.Errorf("--fixed: %w", err)
		}
		cfg.Cropper.FixedSize = &size
	}
	if f.Fit {
		cfg.Cropper.AspectFill = false
	}
	if f.Margin != 0 {
		cfg.Cropper.MarginFactor = f.Margin
	}
	if f.Viewport != "" {
		size, err := types.ParsePixelSize(f.Viewport)
		if err != nil {
			return view, fmt.Errorf("--viewport: %w", err)
		}
		cfg.Viewport.Width = float64(size.Width)
		cfg.Viewport.Height = float64(size.Height)
	}
	if f.Density != 0 {
		cfg.Viewport.PixelDensity = f.Density
	}

	view.Zoom = f.Zoom
	if f.Offset != "" {
		var p types.Point
		if _, err := fmt.Sscanf(f.Offset, "%g,%g", &p.X, &p.Y); err != nil {
			return view, fmt.Errorf("--offset: invalid point %q: %w", f.Offset, err)
		}
		view.Offset = &p
	}
	return view, nil
}

type cropCmd struct {
	Input  string `arg:"" help:"Image file or http(s) URL."`
	Output string `help:"Output file. Defaults to a name derived from the input in the output directory." short:"o"`
	Debug  bool   `help:"Also write a preview with the crop region highlighted."`

	SessionFlags `embed:""`
}

func (cmd *cropCmd) Run(ctx context.Context, cli *cliArgs) error {
	ic, view, err := cli.setup(cmd.SessionFlags)
	if err != nil {
		return err
	}

	out := ic.Config().Output
	output := cmd.Output
	if output == "" {
		output = utils.GenerateOutputFilename(cmd.Input, out.OutputDir, out.Prefix, out.Suffix, out.DefaultFormat)
	}

	report, err := ic.CropFile(ctx, cmd.Input, output, view)
	if err != nil {
		return err
	}

	if cmd.Debug {
		report.DebugOutput = utils.GenerateOutputFilename(cmd.Input, filepath.Dir(output), "debug_", "", "png")
		if err := writeDebug(ctx, ic, cmd.Input, view, report.DebugOutput); err != nil {
			return err
		}
	}

	if st, err := os.Stat(output); err == nil {
		log.Ctx(ctx).Debug().Str("size", utils.FormatFileSize(st.Size())).Msg("output written")
	}
	printJSONL([]*imagecropper.Report{report})
	return nil
}

func writeDebug(ctx context.Context, ic *imagecropper.ImageCropper, input string, view imagecropper.View, path string) error {
	src, err := ic.LoadImage(ctx, input)
	if err != nil {
		return err
	}
	return ic.SaveDebugOverlay(ctx, src, view, path)
}

type boundsCmd struct {
	Input string `arg:"" help:"Image file or http(s) URL."`

	SessionFlags `embed:""`
}

func (cmd *boundsCmd) Run(ctx context.Context, cli *cliArgs) error {
	ic, view, err := cli.setup(cmd.SessionFlags)
	if err != nil {
		return err
	}

	src, err := ic.LoadImage(ctx, cmd.Input)
	if err != nil {
		return err
	}
	report, err := ic.Locate(ctx, src, view)
	if err != nil {
		return err
	}
	report.Input = cmd.Input

	printJSONL([]*imagecropper.Report{report})
	return nil
}

type batchCmd struct {
	Dir       string `arg:"" help:"Directory to scan for images." type:"existingdir"`
	OutputDir string `help:"Output directory. Defaults to the configured one." type:"path"`
	Workers   int    `help:"Number of images cropped concurrently."`
	Debug     bool   `help:"Also write previews with the crop region highlighted."`

	SessionFlags `embed:""`
}

func (cmd *batchCmd) Run(ctx context.Context, cli *cliArgs) error {
	ic, view, err := cli.setup(cmd.SessionFlags)
	if err != nil {
		return err
	}

	out := ic.Config().Output
	outputDir := cmd.OutputDir
	if outputDir == "" {
		outputDir = out.OutputDir
	}
	workers := cmd.Workers
	if workers <= 0 {
		workers = out.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	files, err := utils.ListImageFiles(cmd.Dir, outputDir)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(files) == 0 {
		log.Ctx(ctx).Warn().Str("dir", cmd.Dir).Msg("no images found")
		return nil
	}
	if err := utils.EnsureDir(outputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	log.Ctx(ctx).Info().Int("images", len(files)).Int("workers", workers).Msg("cropping")

	p := pool.NewWithResults[*imagecropper.Report]().
		WithContext(ctx).
		WithMaxGoroutines(workers)
	for _, file := range files {
		p.Go(func(ctx context.Context) (*imagecropper.Report, error) {
			dir := outputDir
			if rel, err := filepath.Rel(cmd.Dir, filepath.Dir(file)); err == nil && rel != "." {
				dir = filepath.Join(outputDir, rel)
			}
			output := utils.GenerateOutputFilename(file, dir, out.Prefix, out.Suffix, out.DefaultFormat)

			report, err := ic.CropFile(ctx, file, output, view)
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Str("input", file).Msg("crop failed")
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			if cmd.Debug {
				report.DebugOutput = utils.GenerateOutputFilename(file, dir, "debug_", "", "png")
				if err := writeDebug(ctx, ic, file, view, report.DebugOutput); err != nil {
					return nil, fmt.Errorf("%s: %w", file, err)
				}
			}
			return report, nil
		})
	}

	reports, err := p.Wait()
	printJSONL(reports)
	if err != nil {
		failed := len(files) - len(reports)
		return fmt.Errorf("%d of %d images failed: %w", failed, len(files), err)
	}
	return nil
}

type serveCmd struct {
	Addr string `help:"Address to listen on." default:"localhost:8080"`

	SessionFlags `embed:""`
}

func (cmd *serveCmd) Run(ctx context.Context, cli *cliArgs) error {
	ic, _, err := cli.setup(cmd.SessionFlags)
	if err != nil {
		return err
	}

	app := NewWebApp(Config{
		Addr:    cmd.Addr,
		Cropper: ic.Config(),
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down web application...")
		},
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
		},
	})

	return app.Run(ctx)
}

type initConfigCmd struct {
	Path  string `arg:"" optional:"" help:"Where to write the config. Defaults to the user config path." type:"path"`
	Force bool   `help:"Overwrite an existing file."`
}

func (cmd *initConfigCmd) Run(ctx context.Context) error {
	path := cmd.Path
	if path == "" {
		path = config.GetConfigPath()
	}
	if fileExists(path) && !cmd.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("path", path).Msg("config written")
	return nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func printJSONL[T any](data []T) {
	enc := json.NewEncoder(os.Stdout)
	for _, item := range data {
		if err := enc.Encode(item); err != nil {
			log.Error().Err(err).Msg("Failed to encode item to JSON")
			continue
		}
	}
}
