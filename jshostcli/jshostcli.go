package jshostcli

import (
	"context"
	"fmt"
	"strings"

	"cdr.dev/slog"

	"oss.terrastruct.com/jshost/jsengine"
	_ "oss.terrastruct.com/jshost/jsengine/gojaengine"
	_ "oss.terrastruct.com/jshost/jsengine/v8engine"
	"oss.terrastruct.com/jshost/jsexec"
	"oss.terrastruct.com/jshost/lib/log"
	"oss.terrastruct.com/jshost/lib/version"
	"oss.terrastruct.com/jshost/lib/xmain"
)

func Run(ctx context.Context, ms *xmain.State) (err error) {
	engineFlag := ms.Opts.String("JSHOST_ENGINE", "engine", "e", jsengine.DefaultBackend(), fmt.Sprintf("the script engine used. One of %v", jsengine.Backends()))
	concurrencyFlag, err := ms.Opts.Int64("JSHOST_CONCURRENCY", "concurrency", "", 0, "worker threads of the engine platform. 0 uses the number of CPUs. v8 only distinguishes 1 (--single-threaded) from more; goja ignores it")
	if err != nil {
		return err
	}
	v8FlagsFlag := ms.Opts.String("JSHOST_V8_FLAGS", "v8-flags", "", "", `space separated flags passed to V8, e.g. "--stack-size=2048"`)
	debugFlag, err := ms.Opts.Bool("DEBUG", "debug", "d", false, "print debug logs.")
	if err != nil {
		ms.Log.Warn.Printf("Invalid DEBUG flag value ignored")
		f := false
		debugFlag = &f
	}
	versionFlag, err := ms.Opts.Bool("", "version", "v", false, "get the version")
	if err != nil {
		return err
	}

	helpRequested, err := ms.Opts.Parse()
	if err != nil {
		return err
	}
	if helpRequested {
		help(ms)
		return nil
	}

	if *versionFlag {
		fmt.Fprintln(ms.Stdout, version.Version)
		return nil
	}

	args := ms.Opts.Flags.Args()
	if len(args) > 0 {
		switch args[0] {
		case "version":
			if len(args) > 1 {
				return xmain.UsageErrorf("version subcommand accepts no arguments")
			}
			fmt.Fprintln(ms.Stdout, version.Version)
			return nil
		case "engines":
			if len(args) > 1 {
				return xmain.UsageErrorf("engines subcommand accepts no arguments")
			}
			return enginesCmd(ms)
		}
	}
	if len(args) > 1 {
		return xmain.UsageErrorf("too many arguments passed")
	}

	if *debugFlag {
		ctx = log.Leveled(ctx, slog.LevelDebug)
	}
	if *concurrencyFlag < 0 {
		return xmain.UsageErrorf("--concurrency must be non-negative, got %d", *concurrencyFlag)
	}

	inputPath := jsexec.DefaultPath
	if len(args) == 1 {
		inputPath = args[0]
	}

	platform := jsengine.NewDefaultPlatform(int(*concurrencyFlag))
	platform.Flags = strings.Fields(*v8FlagsFlag)

	eng, err := jsengine.Initialize(ctx, *engineFlag, platform)
	if err != nil {
		return err
	}
	defer func() {
		derr := eng.Dispose(ctx)
		if err == nil {
			err = derr
		}
	}()

	return runScript(ctx, ms, eng, inputPath)
}

// runScript executes inputPath on eng, writing script output to ms.Stdout.
func runScript(ctx context.Context, ms *xmain.State, eng *jsengine.Engine, inputPath string) error {
	var src jsexec.Source = jsexec.File(inputPath)
	origin := inputPath
	if inputPath == "-" {
		src = jsexec.Reader(ms.Stdin)
		origin = "stdin"
	}

	rep, err := jsexec.Run(ctx, eng, src, ms.Stdout, &jsexec.Opts{Origin: origin})
	if err != nil {
		return err
	}
	log.Debug(ctx, "run finished", slog.F("state", rep.State.String()), slog.F("engine", eng.Backend()))
	return nil
}

func enginesCmd(ms *xmain.State) error {
	def := jsengine.DefaultBackend()
	for _, name := range jsengine.Backends() {
		if name == def {
			fmt.Fprintf(ms.Stdout, "%s (default)\n", name)
		} else {
			fmt.Fprintln(ms.Stdout, name)
		}
	}
	return nil
}
