/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gocomicstudio/internal/config"
	"gocomicstudio/internal/crash"
	"gocomicstudio/internal/domain"
	"gocomicstudio/internal/export"
	"gocomicstudio/internal/server"
	"gocomicstudio/internal/storage"
	"gocomicstudio/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Go Comic Studio")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  gocomicstudio version|-v|--version           Show version")
	_, _ = fmt.Fprintln(w, "  gocomicstudio serve [--addr host:port]        Serve the editing session over HTTP")
	_, _ = fmt.Fprintln(w, "  gocomicstudio key set <key|->|clear|status    Manage the Gemini API key in the OS keychain")
	_, _ = fmt.Fprintln(w, "  gocomicstudio script [flags]                  Generate a script and save the session")
	_, _ = fmt.Fprintln(w, "  gocomicstudio compose                         Generate artwork for the saved session")
	_, _ = fmt.Fprintln(w, "  gocomicstudio export [flags]                  Export the saved session (pdf, cbz, png)")
	_, _ = fmt.Fprintln(w, "  gocomicstudio reset                           Delete the saved session and the API key")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "key":
		return report(stderr, cmdKey(args[1:], stdin, stdout))
	}

	cfg, err := loadConfig()
	if err != nil {
		return report(stderr, err)
	}
	initLogging(cfg)
	l := slog.With(slog.String("component", "cli"), slog.String("cmd", args[0]))
	l.Debug("start", slog.Int("args", len(args)))

	switch args[0] {
	case "serve":
		err = cmdServe(ctx, cfg, args[1:], stdout)
	case "script":
		err = cmdScript(ctx, cfg, args[1:], stdout)
	case "compose":
		err = cmdCompose(ctx, cfg, stdout)
	case "export":
		err = cmdExport(ctx, cfg, args[1:], stdout)
	case "reset":
		err = cmdReset(ctx, cfg, stdout)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return report(stderr, err)
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func report(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintln(stderr, "Error:", err)
	var ue usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

func cmdKey(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return usageError{"key requires set, clear or status"}
	}
	creds := newCredentials()
	switch args[0] {
	case "set":
		if len(args) < 2 {
			return usageError{"key set requires <key> or - to read it from stdin"}
		}
		key := args[1]
		if key == "-" {
			line, err := bufio.NewReader(stdin).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read key: %w", err)
			}
			key = line
		}
		if err := creds.Set(strings.TrimSpace(key)); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "API key stored in the OS keychain.")
	case "clear":
		if err := creds.Delete(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "API key removed.")
	case "status":
		_, err := creds.Get()
		switch {
		case errors.Is(err, config.ErrNoCredential):
			_, _ = fmt.Fprintln(stdout, "API key: not configured")
		case err != nil:
			return err
		default:
			_, _ = fmt.Fprintln(stdout, "API key: configured")
		}
	default:
		return usageError{fmt.Sprintf("unknown key action %q", args[0])}
	}
	return nil
}

func cmdServe(ctx context.Context, cfg config.AppConfig, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Server.Addr, "listen address")
	resume := fs.Bool("resume", true, "load the saved session on start")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, "serve")
	if err != nil {
		return err
	}
	defer a.Close()
	defer crash.Recover(a.dataDir, a.snapshot)

	if *resume {
		if err := a.sess.Load(ctx); err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.log.Warn("saved session not loaded", slog.Any("err", err))
		}
	}
	srv, err := server.New(server.Options{Session: a.sess, Credentials: a.creds, Bus: a.bus, Store: a.store})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Go Comic Studio listening on http://%s\n", *addr)
	return srv.ListenAndServe(ctx, *addr)
}

// sideFlag collects repeated --side "Name=Description" values.
type sideFlag []string

func (s *sideFlag) String() string     { return strings.Join(*s, ",") }
func (s *sideFlag) Set(v string) error { *s = append(*s, v); return nil }

func cmdScript(ctx context.Context, cfg config.AppConfig, args []string, stdout io.Writer) error {
	story := domain.DefaultStorySettings()
	fs := flag.NewFlagSet("script", flag.ContinueOnError)
	topic := fs.String("topic", story.Topic, "story plot")
	length := fs.Int("length", story.Length, "number of panels (4 or 8)")
	perPage := fs.Int("per-page", story.PanelsPerPage, "panels per printed page (2-4)")
	bg := fs.String("background", story.BackgroundColor, "page background color #rrggbb")
	name := fs.String("character", "", "main character name")
	preset := fs.String("preset", "", "side character preset to add by name")
	var sides sideFlag
	fs.Var(&sides, "side", `side character as "Name=Description" (repeatable)`)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(ctx, cfg, "script")
	if err != nil {
		return err
	}
	defer a.Close()
	defer crash.Recover(a.dataDir, a.snapshot)

	if *name != "" {
		c := domain.DefaultCharacter()
		c.Name = *name
		if err := a.sess.SetCharacter(c); err != nil {
			return err
		}
	}
	if *preset != "" {
		p, ok := domain.SuggestPreset(*preset)
		if !ok {
			return usageError{fmt.Sprintf("no preset matches %q", *preset)}
		}
		sides = append(sides, p.Name+"="+p.Description)
	}
	for _, sc := range sides {
		n, desc, _ := strings.Cut(sc, "=")
		if _, err := a.sess.AddSideCharacter(strings.TrimSpace(n), strings.TrimSpace(desc)); err != nil {
			return fmt.Errorf("side character %q: %w", sc, err)
		}
	}
	story.Topic, story.Length, story.PanelsPerPage, story.BackgroundColor = *topic, *length, *perPage, *bg
	if err := a.sess.SetStory(story); err != nil {
		return err
	}
	if err := a.sess.GenerateScript(ctx); err != nil {
		return err
	}
	if err := a.sess.Save(ctx); err != nil {
		return err
	}
	for _, p := range a.sess.Snapshot().Script.Panels {
		_, _ = fmt.Fprintf(stdout, "%d. %s\n", p.Sequence, p.Description)
		if strings.TrimSpace(p.DialogueText) != "" {
			_, _ = fmt.Fprintf(stdout, "   %s: %q\n", p.DialogueCharacter, p.DialogueText)
		}
	}
	return nil
}

func cmdCompose(ctx context.Context, cfg config.AppConfig, stdout io.Writer) error {
	a, err := openApp(ctx, cfg, "compose")
	if err != nil {
		return err
	}
	defer a.Close()
	defer crash.Recover(a.dataDir, a.snapshot)

	if err := a.sess.Load(ctx); err != nil {
		return err
	}
	switch a.sess.Step() {
	case domain.StepEditingScript:
		if err := a.sess.Compose(ctx); err != nil {
			return err
		}
	case domain.StepComposing:
		// Retry what is missing.
		for _, p := range a.sess.Snapshot().Script.Panels {
			if p.Artwork.State != domain.ArtworkReady {
				if err := a.sess.RegeneratePanel(ctx, p.Sequence); err != nil {
					return err
				}
			}
		}
	default:
		return usageError{"no script yet; run the script command first"}
	}
	a.sess.Wait()
	if err := a.sess.Save(ctx); err != nil {
		return err
	}
	failed := 0
	for _, p := range a.sess.Snapshot().Script.Panels {
		state := string(p.Artwork.State)
		if p.Artwork.State == domain.ArtworkFailed {
			failed++
			state += ": " + p.Artwork.Error
		}
		_, _ = fmt.Fprintf(stdout, "panel %d: %s\n", p.Sequence, state)
	}
	if failed > 0 {
		return fmt.Errorf("%d panel(s) failed; run compose again to retry", failed)
	}
	return nil
}

func cmdExport(ctx context.Context, cfg config.AppConfig, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", ".", "output directory")
	formats := fs.String("format", "", "comma separated formats: pdf, cbz, png (default from preset)")
	preset := fs.String("preset", string(export.PresetPrint), "export preset: print or web")
	pageSize := fs.String("page-size", "A4", "A4 or Letter")
	stem := fs.String("name", "comic", "output file name without extension")
	font := fs.String("font", "", "TTF font for page text (enables full Unicode)")
	strict := fs.Bool("strict", false, "fail on undecodable images")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(ctx, cfg, "export")
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.store.Get(ctx, storage.SessionKey)
	if err != nil {
		return fmt.Errorf("no saved session: %w", err)
	}
	snap, err := storage.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	var list []string
	if *formats != "" {
		list = strings.Split(*formats, ",")
	}
	paths, err := export.BatchExport(ctx, snap, export.BatchOptions{
		Preset:  export.PresetName(*preset),
		Formats: list,
		OutDir:  *out,
		Stem:    *stem,
		PDF:     export.PDFOptions{PageSize: *pageSize, UnicodeFont: *font, Strict: *strict},
		Raster:  export.RasterOptions{PageSize: *pageSize, Strict: *strict, Font: *font},
	})
	for _, p := range paths {
		_, _ = fmt.Fprintln(stdout, p)
	}
	return err
}

func cmdReset(ctx context.Context, cfg config.AppConfig, stdout io.Writer) error {
	a, err := openApp(ctx, cfg, "reset")
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.sess.Reset(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, "Saved session and API key removed.")
	return nil
}
