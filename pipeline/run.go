package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gcss/config"
	"gcss/state"
)

// Options controls how compiled files are written.
type Options struct {
	Overwrite bool
	// Workers limits number of files compiled in parallel, 0 means number
	// of CPUs.
	Workers int
}

// Run is the action of "transform" command.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("transform")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	dst := cmd.Args().Get(1)
	if len(dst) > 0 {
		if dst, err = filepath.Abs(dst); err != nil {
			return err
		}
	}
	if len(dst) == 0 {
		env.ClaimStdout()
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	tc, err := transformConfig(env.Cfg.Transform, cmd)
	if err != nil {
		return err
	}
	c, err := NewCompiler(&tc, log)
	if err != nil {
		return fmt.Errorf("unable to prepare compiler: %w", err)
	}
	storeReport(env.Rpt, c, &tc, log)

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, c, src, dst, Options{Overwrite: tc.Overwrite, Workers: tc.Workers}, os.Stdout, log)
}

// transformConfig applies command line overrides to configured values.
func transformConfig(tc config.TransformConfig, cmd *cli.Command) (config.TransformConfig, error) {
	if cmd.IsSet("composes") {
		tc.Composes.Source = cmd.String("composes")
	}
	if cmd.IsSet("custom-media") {
		tc.CustomMedia.Source = cmd.String("custom-media")
	}
	tc.Minify = tc.Minify || cmd.Bool("minify")
	tc.Overwrite = tc.Overwrite || cmd.Bool("overwrite")

	urls, err := mergeURLs(tc.URLs, cmd.StringSlice("url"))
	if err != nil {
		return tc, err
	}
	tc.URLs = urls
	return tc, nil
}

// mergeURLs adds KEY=VALUE pairs to a copy of base mapping, pairs win.
func mergeURLs(base map[string]string, pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return base, nil
	}
	urls := maps.Clone(base)
	if urls == nil {
		urls = make(map[string]string, len(pairs))
	}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || len(k) == 0 {
			return nil, fmt.Errorf("malformed url placeholder value %q, expected KEY=VALUE", kv)
		}
		urls[k] = v
	}
	return urls, nil
}

// process compiles single file or every stylesheet under directory. Single
// file without destination is written to out.
func process(ctx context.Context, c *Compiler, src, dst string, opts Options, out io.Writer, log *zap.Logger) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found: %w", err)
	}

	switch {
	case fi.Mode().IsRegular():
		if len(dst) == 0 {
			data, err := c.CompileFile(src)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		}
		return processFiles(ctx, c, []job{{src: src, dst: filepath.Join(dst, filepath.Base(src))}}, opts, log)
	case fi.IsDir():
		if len(dst) == 0 {
			return errors.New("destination is required when source is a directory")
		}
		jobs, err := collect(ctx, src, dst, log)
		if err != nil {
			return err
		}
		return processFiles(ctx, c, jobs, opts, log)
	}
	return fmt.Errorf("unexpected path mode for (%s)", src)
}

type job struct {
	src, dst string
}

// collect walks directory looking for stylesheets, output tree mirrors the
// input one. Destination located inside source directory is not walked.
func collect(ctx context.Context, dir, dst string, log *zap.Logger) ([]job, error) {
	var jobs []job
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if path == dst {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(path), ".css") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		jobs = append(jobs, job{src: path, dst: filepath.Join(dst, rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return jobs, nil
}

// processFiles compiles files in parallel. Failure of a single file does not
// stop others, all failures are returned together.
func processFiles(ctx context.Context, c *Compiler, jobs []job, opts Options, log *zap.Logger) error {
	if len(jobs) == 0 {
		return nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var written, unchanged atomic.Int32
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(workers, len(jobs)))
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := c.CompileFile(j.src)
			if err == nil {
				var changed bool
				if changed, err = writeOutput(j.dst, data, opts.Overwrite); err == nil {
					if changed {
						written.Add(1)
						log.Debug("File transformed", zap.String("from", j.src), zap.String("to", j.dst))
					} else {
						unchanged.Add(1)
						log.Debug("Output is up to date", zap.String("file", j.dst))
					}
					return nil
				}
			}
			log.Error("Unable to process file", zap.String("file", j.src), zap.Error(err))
			errs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Debug("Files processed", zap.Int("total", len(jobs)), zap.Int32("written", written.Load()), zap.Int32("unchanged", unchanged.Load()))
	if err := multierr.Combine(errs...); err != nil {
		return fmt.Errorf("unable to transform %d of %d files: %w", len(multierr.Errors(err)), len(jobs), err)
	}
	return nil
}

// Index is the action of "index" command.
func Index(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	env.ClaimStdout()
	log := env.Log.Named("index")

	tc, err := transformConfig(env.Cfg.Transform, cmd)
	if err != nil {
		return err
	}
	if len(tc.Composes.Source) == 0 && len(tc.CustomMedia.Source) == 0 {
		return errors.New("no global stylesheets specified, nothing to index")
	}
	// placeholders have nothing to index
	tc.URLs = nil

	c, err := NewCompiler(&tc, log)
	if err != nil {
		return fmt.Errorf("unable to prepare compiler: %w", err)
	}
	storeReport(env.Rpt, c, &tc, log)
	return writeIndexes(os.Stdout, c)
}

// writeIndexes prints indexes of enabled plugins.
func writeIndexes(w io.Writer, c *Compiler) error {
	var dumps []string
	if p := c.Composes(); p != nil {
		dumps = append(dumps, p.Index().String())
	}
	if p := c.CustomMedia(); p != nil {
		dumps = append(dumps, p.Index().String())
	}
	_, err := io.WriteString(w, strings.Join(dumps, "\n"))
	return err
}

// storeReport puts global stylesheets, index dumps and effective transform
// configuration into debug report.
func storeReport(rpt *config.Report, c *Compiler, tc *config.TransformConfig, log *zap.Logger) {
	if rpt == nil {
		return
	}
	if data, err := config.Dump(&config.Config{Version: 1, Transform: *tc}); err == nil {
		rpt.StoreData("effective/transform.yaml", data)
	}
	if p := c.Composes(); p != nil {
		storeGlobal(rpt, "composes", tc.Composes.Source, log)
		rpt.StoreData("index/composes.txt", []byte(p.Index().String()))
	}
	if p := c.CustomMedia(); p != nil {
		storeGlobal(rpt, "custom-media", tc.CustomMedia.Source, log)
		rpt.StoreData("index/custom-media.txt", []byte(p.Index().String()))
	}
}

func storeGlobal(rpt *config.Report, plugin, path string, log *zap.Logger) {
	name := fmt.Sprintf("global/%s-%s", plugin, config.CleanFileName(filepath.Base(path)))
	if err := rpt.StoreCopy(name, path); err != nil {
		log.Warn("Unable to store global stylesheet in report", zap.String("file", path), zap.Error(err))
	}
}
